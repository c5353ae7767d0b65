package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-blehub/internal/switchbot"
)

var (
	botOff      = []byte{'H', 0x80, 0x32}
	botOn       = []byte{'H', 0xC0, 0x32}
	presence    = []byte{'s', 0x40, 0x64, 0x12, 0x34, 0x02}
	presenceTmr = []byte{'s', 0x40, 0x64, 0x55, 0x66, 0x02}
)

func macFor(i int) string {
	return fmt.Sprintf("AA:BB:CC:DD:%02X:%02X", i/256, i%256)
}

// recordingLogger captures debug calls.
type recordingLogger struct {
	mu     sync.Mutex
	debugs int
}

func (l *recordingLogger) Debug(string, ...any) {
	l.mu.Lock()
	l.debugs++
	l.mu.Unlock()
}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

// ─── Ingest ────────────────────────────────────────────────────────

func TestIngestAddThenUnchanged(t *testing.T) {
	r := New(DefaultOptions())

	if got := r.Ingest("aa:bb:cc:dd:ee:01", -60, botOff, nil); got != Added {
		t.Fatalf("Ingest() first = %s, want added", got)
	}
	r.ClearChanged()

	if got := r.Ingest("aa:bb:cc:dd:ee:01", -70, botOff, nil); got != Unchanged {
		t.Fatalf("Ingest() second = %s, want unchanged", got)
	}
	if r.HasChanged() {
		t.Error("HasChanged() = true after identical ingest, want false")
	}

	rec, ok := r.Get(0)
	if !ok {
		t.Fatal("Get(0) ok = false")
	}
	if rec.Changed {
		t.Error("record Changed = true after identical ingest, want false")
	}
	// Unchanged performs no mutation at all, the rssi included.
	if rec.RSSI != -60 {
		t.Errorf("RSSI = %d, want -60", rec.RSSI)
	}
}

func TestIngestNoiseByteIsUnchanged(t *testing.T) {
	r := New(DefaultOptions())
	r.Ingest("AA:BB:CC:DD:EE:02", -50, presence, nil)
	r.ClearChanged()

	if got := r.Ingest("AA:BB:CC:DD:EE:02", -50, presenceTmr, nil); got != Unchanged {
		t.Errorf("Ingest() = %s, want unchanged", got)
	}
	if r.HasChanged() {
		t.Error("HasChanged() = true after timer-only change, want false")
	}
}

func TestIngestUpdate(t *testing.T) {
	r := New(DefaultOptions())
	r.Ingest("AA:BB:CC:DD:EE:03", -50, botOff, nil)
	r.ClearChanged()

	if got := r.Ingest("AA:BB:CC:DD:EE:03", -42, botOn, nil); got != Updated {
		t.Fatalf("Ingest() = %s, want updated", got)
	}
	if !r.HasChanged() {
		t.Error("HasChanged() = false after update, want true")
	}

	rec, _ := r.Get(0)
	if !rec.Changed {
		t.Error("record Changed = false after update")
	}
	if rec.RSSI != -42 {
		t.Errorf("RSSI = %d, want -42", rec.RSSI)
	}
	d, err := rec.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if bot := d.Payload.(switchbot.Bot); !bot.State {
		t.Errorf("State = false, want true")
	}
}

func TestIngestCapacity(t *testing.T) {
	r := New(DefaultOptions())
	for i := 0; i < Capacity; i++ {
		if got := r.Ingest(macFor(i), -50, botOff, nil); got != Added {
			t.Fatalf("Ingest(%d) = %s, want added", i, got)
		}
	}

	if got := r.Ingest(macFor(Capacity), -50, botOff, nil); got != Rejected {
		t.Errorf("Ingest(51st) = %s, want rejected", got)
	}
	if r.Count() != Capacity {
		t.Errorf("Count() = %d, want %d", r.Count(), Capacity)
	}

	// Known devices keep updating once full.
	for i := 0; i < Capacity; i++ {
		if got := r.Ingest(macFor(i), -40, botOn, nil); got != Updated {
			t.Fatalf("Ingest(%d) update = %s, want updated", i, got)
		}
	}
}

func TestIngestRejects(t *testing.T) {
	log := &recordingLogger{}
	r := New(Options{StoreUnknown: false})
	r.SetLogger(log)

	tests := []struct {
		name string
		mac  string
		sd   []byte
		md   []byte
	}{
		{"bad mac", "AA:BB:CC:DD:EE", botOff, nil},
		{"mac with dashes", "AA-BB-CC-DD-EE-FF", botOff, nil},
		{"non hex mac", "GG:BB:CC:DD:EE:FF", botOff, nil},
		{"empty service data", "AA:BB:CC:DD:EE:FF", nil, nil},
		{"short bot", "AA:BB:CC:DD:EE:FF", []byte{'H', 0x80}, nil},
		{"io sensor without manufacturer data", "AA:BB:CC:DD:EE:FF", []byte{'w', 0, 0x50}, nil},
		{"unknown model", "AA:BB:CC:DD:EE:FF", []byte{'Z', 1, 2, 3}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Ingest(tt.mac, -50, tt.sd, tt.md); got != Rejected {
				t.Errorf("Ingest() = %s, want rejected", got)
			}
		})
	}

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
	if log.debugs != len(tests) {
		t.Errorf("debug logs = %d, want %d", log.debugs, len(tests))
	}
}

func TestIngestRejectedUpdateKeepsRecord(t *testing.T) {
	r := New(DefaultOptions())
	r.Ingest("AA:BB:CC:DD:EE:04", -50, botOff, nil)
	r.ClearChanged()

	if got := r.Ingest("AA:BB:CC:DD:EE:04", -50, []byte{'H', 0xC0}, nil); got != Rejected {
		t.Fatalf("Ingest() = %s, want rejected", got)
	}
	rec, _ := r.Get(0)
	if rec.Changed || string(rec.Frame()) != string(botOff) {
		t.Errorf("record = % X changed=%v, want untouched", rec.Frame(), rec.Changed)
	}
}

func TestIngestStoresUnknownModel(t *testing.T) {
	r := New(DefaultOptions())
	opaque := []byte{'Z', 1, 2, 3}

	if got := r.Ingest("AA:BB:CC:DD:EE:05", -50, opaque, nil); got != Added {
		t.Fatalf("Ingest() = %s, want added", got)
	}
	if got := r.Ingest("AA:BB:CC:DD:EE:05", -50, opaque, nil); got != Unchanged {
		t.Errorf("Ingest() repeat = %s, want unchanged", got)
	}
	if got := r.Ingest("AA:BB:CC:DD:EE:05", -50, []byte{'Z', 1, 2, 4}, nil); got != Updated {
		t.Errorf("Ingest() new bytes = %s, want updated", got)
	}

	rec, _ := r.Get(0)
	if rec.Model() != 'Z' {
		t.Errorf("Model() = %s, want Z", rec.Model())
	}
	if _, err := rec.Decode(); !errors.Is(err, switchbot.ErrUnknownModel) {
		t.Errorf("Decode() error = %v, want ErrUnknownModel", err)
	}
}

func TestIngestManufacturerModel(t *testing.T) {
	r := New(DefaultOptions())
	md := make([]byte, 15)
	md[9], md[13], md[14] = 0x99, 0x01, 0xF4

	if got := r.Ingest("AA:BB:CC:DD:EE:06", -50, []byte{'5', 0, 0x64}, md); got != Added {
		t.Fatalf("Ingest() = %s, want added", got)
	}
	rec, _ := r.Get(0)
	if rec.Len != 16 {
		t.Errorf("Len = %d, want 16", rec.Len)
	}
	d, err := rec.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	co2 := d.Payload.(switchbot.MeterProCO2)
	if co2.CO2 != 500 || co2.Battery != 100 {
		t.Errorf("Decode() = %+v, want co2 500 battery 100", co2)
	}
}

// ─── Lookup ────────────────────────────────────────────────────────

func TestFindCaseInsensitive(t *testing.T) {
	r := New(DefaultOptions())
	r.Ingest("aa:bb:cc:dd:ee:0f", -50, botOff, nil)
	r.Ingest("AA:BB:CC:DD:EE:10", -50, botOff, nil)

	tests := []struct {
		mac    string
		want   int
		wantOK bool
	}{
		{"AA:BB:CC:DD:EE:0F", 0, true},
		{"aa:bb:cc:dd:ee:0f", 0, true},
		{"Aa:Bb:cC:dD:eE:10", 1, true},
		{"AA:BB:CC:DD:EE:11", 0, false},
		{"not a mac", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.mac, func(t *testing.T) {
			got, ok := r.Find(tt.mac)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("Find(%q) = %d, %v, want %d, %v", tt.mac, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	rec, _ := r.Get(0)
	if rec.Address() != "AA:BB:CC:DD:EE:0F" {
		t.Errorf("Address() = %q, want upper case", rec.Address())
	}
}

func TestGetOutOfRange(t *testing.T) {
	r := New(DefaultOptions())
	r.Ingest("AA:BB:CC:DD:EE:01", -50, botOff, nil)

	for _, idx := range []int{-1, 1, Capacity} {
		if _, ok := r.Get(idx); ok {
			t.Errorf("Get(%d) ok = true, want false", idx)
		}
	}
}

func TestParseMAC(t *testing.T) {
	got, err := ParseMAC("a1:b2:c3:d4:e5:f6")
	if err != nil {
		t.Fatalf("ParseMAC() error = %v", err)
	}
	if string(got[:]) != "A1:B2:C3:D4:E5:F6" {
		t.Errorf("ParseMAC() = %q", string(got[:]))
	}
	if _, err := ParseMAC("A1:B2:C3:D4:E5:F6:"); !errors.Is(err, ErrInvalidMAC) {
		t.Errorf("ParseMAC(long) error = %v, want ErrInvalidMAC", err)
	}
	if _, err := ParseMAC("A1:B2:C3:D4:E5;F6"); !errors.Is(err, ErrInvalidMAC) {
		t.Errorf("ParseMAC(separator) error = %v, want ErrInvalidMAC", err)
	}
}

// ─── Change flags ──────────────────────────────────────────────────

func TestClearChanged(t *testing.T) {
	r := New(DefaultOptions())
	r.Ingest(macFor(1), -50, botOff, nil)
	r.Ingest(macFor(2), -50, botOn, nil)
	r.ClearChanged()

	if r.HasChanged() {
		t.Error("HasChanged() = true after ClearChanged")
	}
	for i := 0; i < r.Count(); i++ {
		rec, _ := r.Get(i)
		if rec.Changed {
			t.Errorf("record %d Changed = true after ClearChanged", i)
		}
		if rec.Len == 0 {
			t.Errorf("record %d lost its frame", i)
		}
	}
}

func TestSnapshotOnlyChanged(t *testing.T) {
	r := New(DefaultOptions())
	for i := 0; i < 4; i++ {
		r.Ingest(macFor(i), -50, botOff, nil)
	}
	r.ClearChanged()
	r.Ingest(macFor(1), -50, botOn, nil)
	r.Ingest(macFor(3), -50, botOn, nil)

	var visited []int
	r.Snapshot(true, func(i int, rec Record) bool {
		visited = append(visited, i)
		return true
	})

	if len(visited) != 2 || visited[0] != 1 || visited[1] != 3 {
		t.Errorf("visited = %v, want [1 3]", visited)
	}
	if r.HasChanged() {
		t.Error("HasChanged() = true after full changed snapshot")
	}

	visited = visited[:0]
	r.Snapshot(true, func(i int, _ Record) bool {
		visited = append(visited, i)
		return true
	})
	if len(visited) != 0 {
		t.Errorf("second snapshot visited %v, want none", visited)
	}
}

func TestSnapshotStopReraisesFlag(t *testing.T) {
	r := New(DefaultOptions())
	for i := 0; i < 3; i++ {
		r.Ingest(macFor(i), -50, botOff, nil)
	}

	r.Snapshot(true, func(i int, _ Record) bool {
		return i == 0
	})

	if !r.HasChanged() {
		t.Fatal("HasChanged() = false with undelivered records")
	}
	rec0, _ := r.Get(0)
	rec1, _ := r.Get(1)
	if rec0.Changed {
		t.Error("delivered record still flagged")
	}
	if !rec1.Changed {
		t.Error("refused record lost its flag")
	}

	var visited []int
	r.Snapshot(true, func(i int, _ Record) bool {
		visited = append(visited, i)
		return true
	})
	if len(visited) != 2 || visited[0] != 1 || visited[1] != 2 {
		t.Errorf("visited = %v, want [1 2]", visited)
	}
}

func TestSnapshotAllKeepsFlags(t *testing.T) {
	r := New(DefaultOptions())
	r.Ingest(macFor(1), -50, botOff, nil)

	n := 0
	r.Snapshot(false, func(int, Record) bool {
		n++
		return true
	})
	if n != 1 {
		t.Errorf("visited %d records, want 1", n)
	}
	if !r.HasChanged() {
		t.Error("HasChanged() = false after full snapshot, want flags untouched")
	}
}

func TestConcurrentIngestAndSnapshot(t *testing.T) {
	r := New(DefaultOptions())
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sd := botOff
			if i%2 == 0 {
				sd = botOn
			}
			r.Ingest(macFor(i%Capacity), -50, sd, nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Snapshot(true, func(int, Record) bool { return true })
		}
	}()
	wg.Wait()

	if r.Count() != Capacity {
		t.Errorf("Count() = %d, want %d", r.Count(), Capacity)
	}
}

func TestOutcomeString(t *testing.T) {
	for o, want := range map[Outcome]string{
		Added: "added", Updated: "updated", Unchanged: "unchanged", Rejected: "rejected",
	} {
		if got := o.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", o, got, want)
		}
	}
}
