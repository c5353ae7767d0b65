// Package webhook tracks the HTTP endpoints that want device change
// notifications and delivers snapshots to them.
//
// The Registry is a fixed five-slot list. An entry stays while its owner
// keeps re-registering within the TTL (five minutes) and while deliveries
// keep succeeding; Check drops idle entries and entries refused more than
// ten times in a row, preserving the order of the rest.
//
// Notifier posts a snapshot to every registered URL and feeds the outcome
// back into the registry. Service couples the registry with a Store so the
// subscriber list survives restarts.
package webhook
