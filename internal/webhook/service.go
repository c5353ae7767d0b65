package webhook

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Service keeps the registry and its store in step.
type Service struct {
	registry *Registry
	store    Store
	logger   Logger
}

// NewService creates a service. store may be nil to run without
// persistence.
func NewService(registry *Registry, store Store) *Service {
	return &Service{
		registry: registry,
		store:    store,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Registry returns the underlying registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Register validates rawURL, adds or refreshes it, and persists it.
//
// Returns:
//   - ErrInvalidURL if the URL is empty, too long or not http(s)
//   - ErrRegistryFull if every slot is taken
//   - a wrapped store error if persistence fails (the entry stays registered)
func (s *Service) Register(ctx context.Context, rawURL string, now time.Time) error {
	if err := ValidateURL(rawURL); err != nil {
		return err
	}
	if !s.registry.Add(rawURL, now) {
		return ErrRegistryFull
	}

	s.logger.Debug("webhook registered", "url", rawURL)
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, Entry{URL: rawURL, LastActivated: now}); err != nil {
		return fmt.Errorf("persisting webhook: %w", err)
	}
	return nil
}

// Unregister removes rawURL from the registry and the store.
func (s *Service) Unregister(ctx context.Context, rawURL string) error {
	if !s.registry.RemoveURL(rawURL) {
		return ErrNotFound
	}

	s.logger.Info("webhook unregistered", "url", rawURL)
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, rawURL); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return nil
}

// Restore loads stored entries into the registry, dropping those already
// past the TTL at now. Returns the number restored.
func (s *Service) Restore(ctx context.Context, now time.Time) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading webhooks: %w", err)
	}

	restored := 0
	for _, e := range entries {
		if now.Sub(e.LastActivated) > s.registry.TTL() || !s.registry.Add(e.URL, e.LastActivated) {
			if err := s.store.Delete(ctx, e.URL); err != nil {
				return restored, fmt.Errorf("pruning webhook: %w", err)
			}
			continue
		}
		restored++
	}

	s.logger.Info("webhooks restored", "count", restored, "stored", len(entries))
	return restored, nil
}

// Sweep evicts expired and refusing entries and deletes them from the
// store. Returns the number evicted.
func (s *Service) Sweep(ctx context.Context, now time.Time) int {
	evicted := s.registry.Expire(now)
	for _, e := range evicted {
		s.logger.Info("webhook evicted", "url", e.URL, "refusals", e.Refusals)
		if s.store == nil {
			continue
		}
		if err := s.store.Delete(ctx, e.URL); err != nil {
			s.logger.Warn("deleting evicted webhook failed", "url", e.URL, "error", err)
		}
	}
	return len(evicted)
}

// ValidateURL checks that rawURL is an absolute http or https URL within
// MaxURLLength.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidURL, MaxURLLength)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidURL, rawURL)
	}
	return nil
}
