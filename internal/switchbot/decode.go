package switchbot

import "fmt"

// Bit-extraction constants.
const (
	// percentMask keeps the 7-bit percentage; bit 7 is an unrelated flag.
	percentMask = 0x7F

	// flagBit7 and flagBit6 are the two status flags packed above
	// percentages and magnitudes.
	flagBit7 = 0x80
	flagBit6 = 0x40

	// nibbleMask keeps a 4-bit field.
	nibbleMask = 0x0F

	// fractionDivisor scales the decimal temperature byte.
	fractionDivisor = 10
)

// Manufacturer-data offsets, expressed as frame offsets (manufacturer
// byte i sits at frame offset i+1).
const (
	bulbSequence = 9
	bulbState    = 10
	bulbMode     = 11

	blindShortPosition = 9
	blindShortBattery  = 10
	blindLongFrame     = 15
	blindLongPosition  = 11
	blindLongBattery   = 12
	blindVersion       = 2

	ioFraction = 11
	ioWhole    = 12
	ioHumidity = 13

	meterProFraction = 9
	meterProWhole    = 10
	meterProHumidity = 11
	meterProCO2      = 14

	waterLeakStatus = 11
)

// Decode validates and decodes one advertisement.
//
// Parameters:
//   - model: the discriminant (service data byte 0)
//   - serviceData: the service data payload
//   - manufData: the manufacturer data payload (nil when absent)
//
// Returns:
//   - Decoded: the tagged payload
//   - error: ErrUnknownModel or ErrSizeMismatch
func Decode(model Model, serviceData, manufData []byte) (Decoded, error) {
	f, err := Pack(model, serviceData, manufData)
	if err != nil {
		return Decoded{Model: model}, err
	}
	return DecodeFrame(f.Bytes())
}

// DecodeFrame decodes a packed frame as produced by Pack.
//
// An unknown discriminant returns the model with a nil Payload and
// ErrUnknownModel, so callers can still report which model was seen.
func DecodeFrame(frame []byte) (Decoded, error) {
	if len(frame) == 0 {
		return Decoded{}, ErrEmptyPayload
	}

	model := Model(frame[0])
	l, ok := layouts[model]
	if !ok {
		return Decoded{Model: model}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	if !l.frame.ok(len(frame)) {
		return Decoded{Model: model}, fmt.Errorf("%w: model %s frame needs %s bytes, got %d",
			ErrSizeMismatch, model, l.frame, len(frame))
	}

	return Decoded{Model: model, Payload: l.decode(frame)}, nil
}

// percent masks a percentage byte to its low 7 bits.
func percent(b byte) uint8 {
	return b & percentMask
}

// temperature decodes a signed-magnitude temperature: the whole byte holds
// the magnitude in its low 7 bits and the sign in bit 7 (1 = positive), the
// fraction byte holds tenths in its low 7 bits.
func temperature(fraction, whole byte) float64 {
	v := float64(whole&percentMask) + float64(fraction&percentMask)/fractionDivisor
	if whole&flagBit7 == 0 && v != 0 {
		v = -v
	}
	return v
}

// uint16BE reads a big-endian two-byte counter.
func uint16BE(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

func decodeBot(f []byte) Payload {
	return Bot{
		Mode:    f[1]&flagBit7 != 0,
		State:   f[1]&flagBit6 != 0,
		Battery: percent(f[2]),
	}
}

func decodeCurtain(f []byte) Payload {
	return Curtain{
		Calibration: f[1]&flagBit6 != 0,
		Battery:     percent(f[2]),
		Position:    percent(f[3]),
		Moving:      f[3]&flagBit7 != 0,
		LightLevel:  (f[4] >> 4) & nibbleMask,
	}
}

func decodeThermometer(f []byte) Payload {
	return Thermometer{
		Temperature: temperature(f[3], f[4]),
		Battery:     percent(f[2]),
		Humidity:    percent(f[5]),
	}
}

func decodePresence(f []byte) Payload {
	return Presence{
		Motion:  f[1]&flagBit6 != 0,
		Battery: percent(f[2]),
		Light:   f[5]&0x03 == 2,
	}
}

func decodeContact(f []byte) Payload {
	hal := (f[3] >> 1) & 0x03
	return Contact{
		Motion:        f[1]&flagBit6 != 0,
		Battery:       percent(f[2]),
		Light:         f[3]&0x01 != 0,
		Contact:       hal != 0,
		LeftOpen:      hal == 2,
		LastMotion:    uint16BE(f[4], f[5]),
		LastContact:   uint16BE(f[6], f[7]),
		ButtonPresses: f[8] & nibbleMask,
		EntryCount:    (f[8] >> 6) & 0x03,
		ExitCount:     (f[8] >> 4) & 0x03,
	}
}

func decodeRemote(f []byte) Payload {
	return Remote{Data1: f[1], Data2: f[2], Data3: f[3]}
}

func decodeBulb(f []byte) Payload {
	return Bulb{
		Sequence:   f[bulbSequence],
		On:         f[bulbState]&flagBit7 != 0,
		Dim:        percent(f[bulbState]),
		LightState: f[bulbMode] & 0x07,
	}
}

// decodeBlind reads the two known frame lengths. The 12 byte manufacturer
// frame omits the company identifier, so its fields sit two bytes earlier.
// Both are reported as version 2.
func decodeBlind(f []byte) Payload {
	pos, batt := blindShortPosition, blindShortBattery
	if len(f) == blindLongFrame {
		pos, batt = blindLongPosition, blindLongBattery
	}
	return Blind{
		Battery:  percent(f[batt]),
		Position: percent(f[pos]),
		Version:  blindVersion,
	}
}

func decodeIOSensor(f []byte) Payload {
	return IOTHSensor{
		Temperature: temperature(f[ioFraction], f[ioWhole]),
		Battery:     percent(f[splicedBatteryOffset]),
		Humidity:    percent(f[ioHumidity]),
	}
}

func decodeMeterPro(f []byte) Payload {
	return IOTHSensor{
		Temperature: temperature(f[meterProFraction], f[meterProWhole]),
		Battery:     percent(f[splicedBatteryOffset]),
		Humidity:    percent(f[meterProHumidity]),
	}
}

func decodeMeterProCO2(f []byte) Payload {
	return MeterProCO2{
		Temperature: temperature(f[meterProFraction], f[meterProWhole]),
		Battery:     percent(f[splicedBatteryOffset]),
		Humidity:    percent(f[meterProHumidity]),
		CO2:         uint16BE(f[meterProCO2], f[meterProCO2+1]),
	}
}

func decodeWaterLeak(f []byte) Payload {
	return WaterLeak{
		Battery: percent(f[splicedBatteryOffset]),
		Status:  f[waterLeakStatus],
	}
}
