// Package registry keeps the most recent advertisement frame for every
// SwitchBot device heard by the hub.
//
// The registry is a fixed arena of Capacity records keyed by MAC address.
// Records are never removed; once the arena is full, new addresses are
// rejected while known devices keep updating.
//
// Frames are stored packed (see switchbot.Pack) and decoded on read.
// Updates are compared with switchbot.Equivalent, so rolling counters and
// sequence numbers do not mark a record as changed.
//
// # Change tracking
//
// Every record carries a changed flag, and the registry carries one that is
// raised whenever any record changes. Snapshot with onlyChanged set clears
// the flags of the records it visits, which is how the encoder delivers
// "changes since last time" without a second pass.
//
// # Thread Safety
//
// A single mutex guards the arena and the flags. Ingest and Snapshot are
// mutually exclusive; no method allocates on the ingest path.
package registry
