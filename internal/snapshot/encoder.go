package snapshot

import (
	"errors"

	"github.com/nerrad567/gray-logic-blehub/internal/registry"
	"github.com/nerrad567/gray-logic-blehub/internal/switchbot"
)

// minArrayBuffer holds "[]" and the terminating NUL.
const minArrayBuffer = 3

// maxRecordSize bounds one object without its quoted hub MAC. A Contact
// object, the largest, needs under 300 bytes with a 64-bit rssi.
const maxRecordSize = 384

// Source is the registry view the encoder reads from.
type Source interface {
	Get(index int) (registry.Record, bool)
	Snapshot(onlyChanged bool, visit func(index int, rec registry.Record) bool)
}

// Encoder renders registry records as JSON.
type Encoder struct {
	source Source
	hubMAC string
}

// NewEncoder creates an encoder that stamps every object with hubMAC.
func NewEncoder(source Source, hubMAC string) *Encoder {
	return &Encoder{source: source, hubMAC: hubMAC}
}

// HubMAC returns the hub address written into every object.
func (e *Encoder) HubMAC() string {
	return e.hubMAC
}

// MaxArraySize is a buffer size for which EncodeAll never drops a record,
// NUL included, however full the registry is.
func (e *Encoder) MaxArraySize() int {
	hub := 2 + 6*len(e.hubMAC) // quoted, every byte escaped as \u00XX
	return len("[]") + registry.Capacity*(maxRecordSize+hub+len(",")) + 1
}

// EncodeOne writes the object for the record at index into out and
// NUL-terminates it. An index with no record yields an error object.
//
// When out is too small the object is cut at capacity. Returns the number
// of bytes written before the NUL, or 0 for an empty buffer.
func (e *Encoder) EncodeOne(index int, out []byte) int {
	if len(out) == 0 {
		return 0
	}

	w := newWriter(out)
	rec, ok := e.source.Get(index)
	if !ok {
		e.writeInvalidIndex(&w, index)
	} else {
		e.writeRecord(&w, rec)
	}
	return w.finish()
}

// EncodeAll writes a JSON array of records into out and NUL-terminates it.
//
// With onlyChanged set only flagged records are written and their flags are
// cleared as they are emitted. An object that does not fit is dropped along
// with everything after it, and those records stay flagged. An empty
// selection yields "[]". Buffers shorter than 3 bytes yield 0.
func (e *Encoder) EncodeAll(out []byte, onlyChanged bool) int {
	if len(out) < minArrayBuffer {
		return 0
	}

	w := newWriter(out)
	w.byte('[')
	first := true

	e.source.Snapshot(onlyChanged, func(_ int, rec registry.Record) bool {
		mark := w.n
		if !first {
			w.byte(',')
		}
		e.writeRecord(&w, rec)

		// Keep room for the closing bracket.
		if w.overflow || w.n >= w.limit {
			w.n = mark
			w.overflow = false
			return false
		}
		first = false
		return true
	})

	w.byte(']')
	return w.finish()
}

func (e *Encoder) writeInvalidIndex(w *writer, index int) {
	w.raw(`{"hubMAC":`)
	w.quoted(e.hubMAC)
	w.raw(`,"serviceData":{"error":"Invalid index `)
	w.int(index)
	w.raw(`"}}`)
}

func (e *Encoder) writeRecord(w *writer, rec registry.Record) {
	w.raw(`{"hubMAC":`)
	w.quoted(e.hubMAC)
	w.field("address")
	w.quotedBytes(rec.MAC[:])
	w.field("rssi")
	w.int(rec.RSSI)
	w.raw(`,"serviceData":{`)

	d, err := rec.Decode()
	switch {
	case errors.Is(err, switchbot.ErrUnknownModel), errors.Is(err, switchbot.ErrEmptyPayload):
		w.raw(`"error":"Unknown model `)
		w.escapedString(d.Model.String())
		w.byte('"')
	case err != nil:
		w.raw(`"error":"Invalid data for model `)
		w.escapedString(d.Model.String())
		w.byte('"')
	default:
		w.raw(`"model":`)
		w.quoted(d.Model.String())
		w.field("modelName")
		w.quoted(d.Model.Name())
		writePayload(w, d.Payload)
	}

	w.raw("}}")
}

// writePayload writes the model-specific members. Field names and order
// are fixed per model.
func writePayload(w *writer, p switchbot.Payload) {
	switch v := p.(type) {
	case switchbot.Curtain:
		w.field("calibration")
		w.bool(v.Calibration)
		w.field("battery")
		w.int(int(v.Battery))
		w.field("position")
		w.int(int(v.Position))
		w.field("lightLevel")
		w.int(int(v.LightLevel))

	case switchbot.Bot:
		w.field("mode")
		w.bool(v.Mode)
		w.field("battery")
		w.int(int(v.Battery))
		w.field("state")
		w.int(boolInt(v.State))

	case switchbot.Thermometer:
		writeClimate(w, v.Temperature, v.Battery, v.Humidity)

	case switchbot.IOTHSensor:
		writeClimate(w, v.Temperature, v.Battery, v.Humidity)

	case switchbot.MeterProCO2:
		writeClimate(w, v.Temperature, v.Battery, v.Humidity)
		w.field("co2")
		w.int(int(v.CO2))

	case switchbot.Presence:
		w.field("motion")
		w.bool(v.Motion)
		w.field("battery")
		w.int(int(v.Battery))
		w.field("light")
		w.bool(v.Light)

	case switchbot.Contact:
		w.field("motion")
		w.bool(v.Motion)
		w.field("battery")
		w.int(int(v.Battery))
		w.field("light")
		w.bool(v.Light)
		w.field("contact")
		w.bool(v.Contact)
		w.field("leftOpen")
		w.bool(v.LeftOpen)
		w.field("lastMotion")
		w.int(int(v.LastMotion))
		w.field("lastContact")
		w.int(int(v.LastContact))
		w.field("buttonPresses")
		w.int(int(v.ButtonPresses))
		w.field("entryCount")
		w.int(int(v.EntryCount))
		w.field("exitCount")
		w.int(int(v.ExitCount))

	case switchbot.Remote:
		w.field("data1")
		w.int(int(v.Data1))
		w.field("data2")
		w.int(int(v.Data2))
		w.field("data3")
		w.int(int(v.Data3))

	case switchbot.Bulb:
		w.field("sequence")
		w.int(int(v.Sequence))
		w.field("on_off")
		w.bool(v.On)
		w.field("dim")
		w.int(int(v.Dim))
		w.field("lightState")
		w.int(int(v.LightState))

	case switchbot.WaterLeak:
		w.field("battery")
		w.int(int(v.Battery))
		w.field("status")
		w.int(int(v.Status))

	case switchbot.Blind:
		w.field("battery")
		w.int(int(v.Battery))
		w.field("position")
		w.int(int(v.Position))
		w.field("version")
		w.int(int(v.Version))
	}
}

func writeClimate(w *writer, temperature float64, battery, humidity uint8) {
	w.raw(`,"temperature":{"c":`)
	w.decimal(temperature)
	w.byte('}')
	w.field("battery")
	w.int(int(battery))
	w.field("humidity")
	w.int(int(humidity))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
