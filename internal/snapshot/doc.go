// Package snapshot renders device registry records as JSON into caller
// supplied buffers.
//
// Output is written directly into the buffer without intermediate
// allocation and never past its length. One byte is always reserved for a
// terminating NUL so the buffer can be handed to C-style consumers
// unchanged; the returned count excludes it.
//
// Object layout:
//
//	{"hubMAC":"..","address":"..","rssi":-60,"serviceData":{"model":"c","modelName":"WoCurtain",...}}
//
// EncodeAll wraps objects in a JSON array and only ever emits whole objects,
// so a short buffer yields a shorter but valid array.
package snapshot
