// Package switchbot decodes the BLE advertisement payloads broadcast by
// SwitchBot sensors and actuators.
//
// Every advertisement carries a one-byte model discriminant as the first byte
// of its service data. Depending on the model, the interesting fields live in
// the service data itself or in the vendor manufacturer data, with the battery
// level usually left in service data.
//
// # Frames
//
// The codec works in two steps:
//
//	Pack(model, serviceData, manufData) -> Frame   (validate + storage layout)
//	DecodeFrame(frame)                  -> Decoded (bit extraction)
//
// A Frame is the fixed-capacity (21 byte) record kept by the device registry.
// For service-data models the frame is the service data verbatim. For
// manufacturer-data models the frame is the discriminant followed by the
// manufacturer bytes, with the service-data battery byte spliced over the
// first (redundant) MAC byte of the manufacturer frame:
//
//	frame[0]   model discriminant
//	frame[1:]  manufacturer data (company id, MAC, fields...)
//	frame[3]   service data byte 2 (battery) for w, 4, 5 and &
//
// Decode is Pack followed by DecodeFrame, so live advertisements and stored
// records go through the same extraction code.
//
// # Change detection
//
// Several models embed rolling counters that change on every advertisement
// without any real state change. Equivalent compares two frames using the
// per-model set of offsets that feed a surfaced field, so callers can
// suppress those updates.
//
// # Errors
//
// A recognised model with a short buffer returns ErrSizeMismatch. An
// unrecognised discriminant returns ErrUnknownModel. Neither panics.
package switchbot
