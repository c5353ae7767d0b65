package switchbot

import (
	"bytes"
	"fmt"
)

// Frame size constraints.
const (
	// FrameCapacity is the maximum number of bytes kept per device.
	FrameCapacity = 21

	// minOpaqueFrame is the smallest payload stored for unknown models.
	minOpaqueFrame = 3

	// serviceBatteryOffset is where the battery byte sits in service data.
	serviceBatteryOffset = 2

	// splicedBatteryOffset is the frame offset that receives the service-data
	// battery byte for manufacturer-data models. It overwrites the first MAC
	// byte of the manufacturer frame, which the registry already keys on.
	splicedBatteryOffset = 3
)

// Frame is a packed device record: at most FrameCapacity bytes, no heap.
type Frame struct {
	buf [FrameCapacity]byte
	n   uint8
}

// Bytes returns the valid prefix of the frame.
func (f *Frame) Bytes() []byte {
	return f.buf[:f.n]
}

// Len returns the number of valid bytes.
func (f *Frame) Len() int {
	return int(f.n)
}

// Model returns the frame discriminant, or 0 for an empty frame.
func (f *Frame) Model() Model {
	if f.n == 0 {
		return 0
	}
	return Model(f.buf[0])
}

// sizeRule describes accepted buffer lengths: either a set of exact
// lengths, or a minimum.
type sizeRule struct {
	exact []int
	min   int
}

func exactly(n ...int) sizeRule { return sizeRule{exact: n} }
func atLeast(n int) sizeRule    { return sizeRule{min: n} }

func (r sizeRule) required() bool {
	return len(r.exact) > 0 || r.min > 0
}

func (r sizeRule) ok(n int) bool {
	if len(r.exact) > 0 {
		for _, e := range r.exact {
			if n == e {
				return true
			}
		}
		return false
	}
	return n >= r.min
}

func (r sizeRule) String() string {
	if len(r.exact) == 1 {
		return fmt.Sprintf("%d", r.exact[0])
	}
	if len(r.exact) > 1 {
		return fmt.Sprintf("one of %v", r.exact)
	}
	return fmt.Sprintf("at least %d", r.min)
}

// layout is the per-model recipe: size rules for both buffers, the frame
// rule the decoder relies on, the spliced battery position, the offsets
// compared for change detection, and the extractor.
type layout struct {
	service sizeRule
	manuf   sizeRule
	frame   sizeRule

	// splice is true when service data byte 2 is copied to frame offset 3.
	splice bool

	// keep bounds how many manufacturer bytes are stored; trailing bytes
	// appended by newer firmware are ignored. Zero keeps up to capacity.
	keep int

	// watched returns the frame offsets that feed a surfaced field.
	watched func(n int) []int

	decode func(f []byte) Payload
}

// Watched offsets per model. Offsets not listed here carry rolling
// counters, sequence numbers or addressing and never mark a change.
var (
	watchBot         = []int{1, 2}
	watchCurtain     = []int{1, 2, 3, 4}
	watchThermometer = []int{2, 3, 4, 5}
	watchPresence    = []int{1, 2, 5}
	watchContact     = []int{1, 2, 3, 8}
	watchRemote      = []int{1, 2, 3}
	watchBulb        = []int{10, 11}
	watchBlindShort  = []int{blindShortPosition, blindShortBattery}
	watchBlindLong   = []int{blindLongPosition, blindLongBattery}
	watchIOSensor    = []int{3, 11, 12, 13}
	watchMeterPro    = []int{3, 9, 10, 11}
	watchMeterCO2    = []int{3, 9, 10, 11, 14, 15}
	watchWaterLeak   = []int{3, waterLeakStatus}
)

func fixed(offsets []int) func(int) []int {
	return func(int) []int { return offsets }
}

var layouts = map[Model]layout{
	ModelBot: {
		service: exactly(3), frame: exactly(3),
		watched: fixed(watchBot), decode: decodeBot,
	},
	ModelCurtain: {
		service: atLeast(6), frame: atLeast(6),
		watched: fixed(watchCurtain), decode: decodeCurtain,
	},
	ModelCurtain3: {
		service: atLeast(6), frame: atLeast(6),
		watched: fixed(watchCurtain), decode: decodeCurtain,
	},
	ModelMeter: {
		service: exactly(6), frame: exactly(6),
		watched: fixed(watchThermometer), decode: decodeThermometer,
	},
	ModelMeterPlus: {
		service: exactly(6), frame: exactly(6),
		watched: fixed(watchThermometer), decode: decodeThermometer,
	},
	ModelPresence: {
		service: exactly(6), frame: exactly(6),
		watched: fixed(watchPresence), decode: decodePresence,
	},
	ModelContact: {
		service: exactly(9), frame: exactly(9),
		watched: fixed(watchContact), decode: decodeContact,
	},
	ModelRemote: {
		service: exactly(4), frame: exactly(4),
		watched: fixed(watchRemote), decode: decodeRemote,
	},
	ModelBulb: {
		manuf: exactly(13), frame: exactly(14),
		watched: fixed(watchBulb), decode: decodeBulb,
	},
	ModelBlindTilt: {
		manuf: exactly(12, 14), frame: exactly(13, 15),
		watched: func(n int) []int {
			if n == blindLongFrame {
				return watchBlindLong
			}
			return watchBlindShort
		},
		decode: decodeBlind,
	},
	ModelIOSensor: {
		service: atLeast(3), manuf: atLeast(14), frame: exactly(15), splice: true, keep: 14,
		watched: fixed(watchIOSensor), decode: decodeIOSensor,
	},
	ModelWaterLeak: {
		service: atLeast(3), manuf: atLeast(21), frame: exactly(FrameCapacity), splice: true,
		watched: fixed(watchWaterLeak), decode: decodeWaterLeak,
	},
	ModelMeterPro: {
		service: atLeast(3), manuf: atLeast(11), frame: exactly(12), splice: true, keep: 11,
		watched: fixed(watchMeterPro), decode: decodeMeterPro,
	},
	ModelMeterProCO2: {
		service: atLeast(3), manuf: atLeast(15), frame: exactly(16), splice: true, keep: 15,
		watched: fixed(watchMeterCO2), decode: decodeMeterProCO2,
	},
}

// Validate checks both buffers against the model's size rules.
//
// Returns:
//   - ErrUnknownModel if the model has no recipe
//   - ErrSizeMismatch if a buffer does not satisfy its rule
func Validate(model Model, serviceData, manufData []byte) error {
	l, ok := layouts[model]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return l.validate(model, serviceData, manufData)
}

func (l layout) validate(model Model, serviceData, manufData []byte) error {
	if l.service.required() && !l.service.ok(len(serviceData)) {
		return fmt.Errorf("%w: model %s service data needs %s bytes, got %d",
			ErrSizeMismatch, model, l.service, len(serviceData))
	}
	if l.manuf.required() && !l.manuf.ok(len(manufData)) {
		return fmt.Errorf("%w: model %s manufacturer data needs %s bytes, got %d",
			ErrSizeMismatch, model, l.manuf, len(manufData))
	}
	return nil
}

// Pack validates the buffers and lays them out as a registry frame.
//
// Service-data models keep their service data verbatim (excess bytes past
// FrameCapacity are dropped). Manufacturer-data models store the
// discriminant, then the manufacturer bytes, then splice the service-data
// battery byte at offset 3 where the model requires it.
func Pack(model Model, serviceData, manufData []byte) (Frame, error) {
	l, ok := layouts[model]
	if !ok {
		return Frame{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	if err := l.validate(model, serviceData, manufData); err != nil {
		return Frame{}, err
	}

	var f Frame
	if !l.manuf.required() {
		f.n = uint8(copy(f.buf[:], serviceData)) //nolint:gosec // bounded by FrameCapacity
		f.buf[0] = byte(model)
		return f, nil
	}

	if l.keep > 0 && len(manufData) > l.keep {
		manufData = manufData[:l.keep]
	}
	f.buf[0] = byte(model)
	f.n = uint8(1 + copy(f.buf[1:], manufData)) //nolint:gosec // bounded by FrameCapacity
	if l.splice {
		f.buf[splicedBatteryOffset] = serviceData[serviceBatteryOffset]
	}
	return f, nil
}

// PackOpaque stores service data of an unknown model verbatim.
// It accepts 3 to FrameCapacity bytes.
func PackOpaque(serviceData []byte) (Frame, error) {
	if len(serviceData) < minOpaqueFrame || len(serviceData) > FrameCapacity {
		return Frame{}, fmt.Errorf("%w: opaque payload needs %d-%d bytes, got %d",
			ErrSizeMismatch, minOpaqueFrame, FrameCapacity, len(serviceData))
	}
	var f Frame
	f.n = uint8(copy(f.buf[:], serviceData)) //nolint:gosec // bounded by FrameCapacity
	return f, nil
}

// FrameFrom copies an already packed frame. Bytes past FrameCapacity are
// dropped.
func FrameFrom(raw []byte) Frame {
	var f Frame
	f.n = uint8(copy(f.buf[:], raw)) //nolint:gosec // bounded by FrameCapacity
	return f
}

// Equivalent reports whether two frames carry the same surfaced state.
//
// Frames of different length or model are never equivalent. Unknown
// models fall back to byte equality.
func Equivalent(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	if a[0] != b[0] {
		return false
	}

	l, ok := layouts[Model(a[0])]
	if !ok {
		return bytes.Equal(a, b)
	}

	for _, off := range l.watched(len(a)) {
		if off >= len(a) {
			continue
		}
		if a[off] != b[off] {
			return false
		}
	}
	return true
}
