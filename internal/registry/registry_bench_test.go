package registry

import "testing"

func fullRegistry() *Registry {
	r := New(DefaultOptions())
	for i := 0; i < Capacity; i++ {
		r.Ingest(macFor(i), -50, botOff, nil)
	}
	return r
}

// ─── Ingest hot path ───────────────────────────────────────────────

func BenchmarkIngestUnchanged(b *testing.B) {
	r := fullRegistry()
	mac := macFor(Capacity - 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Ingest(mac, -50, botOff, nil)
	}
}

func BenchmarkIngestNoise(b *testing.B) {
	r := New(DefaultOptions())
	r.Ingest("AA:BB:CC:DD:EE:01", -50, presence, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%2 == 0 {
			r.Ingest("aa:bb:cc:dd:ee:01", -50, presenceTmr, nil)
		} else {
			r.Ingest("aa:bb:cc:dd:ee:01", -50, presence, nil)
		}
	}
}

func BenchmarkFind(b *testing.B) {
	r := fullRegistry()
	mac := macFor(Capacity / 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Find(mac)
	}
}

// ─── Snapshot ──────────────────────────────────────────────────────

func BenchmarkSnapshotAll(b *testing.B) {
	r := fullRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Snapshot(false, func(int, Record) bool { return true })
	}
}
