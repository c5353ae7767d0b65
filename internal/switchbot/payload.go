package switchbot

// Payload is one decoded device shape. Exactly one concrete type is produced
// per decoded frame; the set is closed.
type Payload interface {
	payload()
}

// Decoded is the tagged result of decoding a frame.
//
// Model always equals frame[0]. A nil Payload means the model has no
// variant and the caller should report it rather than fail.
type Decoded struct {
	Model   Model
	Payload Payload
}

// Device is a decoded record together with the address and signal strength
// it was observed with.
type Device struct {
	Address string
	RSSI    int
	Decoded
}

// Bot is the WoHand push-button actuator.
type Bot struct {
	// Mode is true when the light switch add-on (switch mode) is used.
	Mode bool
	// State is the switch state: true for on.
	State   bool
	Battery uint8
}

// Curtain is the curtain motor (both generations).
type Curtain struct {
	Calibration bool
	Battery     uint8
	Position    uint8
	Moving      bool
	// LightLevel is the light sensor level, 1-10.
	LightLevel uint8
}

// Blind is the blind tilt motor.
type Blind struct {
	Battery  uint8
	Position uint8
	// Version is the frame generation. Both the 12 and the 14 byte
	// manufacturer frames are generation 2.
	Version uint8
}

// Thermometer is the Meter / Meter Plus temperature and humidity sensor.
type Thermometer struct {
	Temperature float64
	Battery     uint8
	Humidity    uint8
}

// IOTHSensor is the indoor/outdoor thermo-hygrometer. Meter Pro decodes to
// the same shape.
type IOTHSensor struct {
	Temperature float64
	Battery     uint8
	Humidity    uint8
}

// MeterProCO2 is the Meter Pro with CO2 sensor.
type MeterProCO2 struct {
	Temperature float64
	Battery     uint8
	Humidity    uint8
	CO2         uint16
}

// Presence is the motion (PIR) sensor.
type Presence struct {
	Motion  bool
	Battery uint8
	// Light is true when the ambient light sensor reports bright.
	Light bool
}

// Contact is the door/window contact sensor with PIR and button.
type Contact struct {
	Motion  bool
	Battery uint8
	Light   bool
	// Contact is true while the magnet is away (door open).
	Contact bool
	// LeftOpen is true when the door has been open past the timeout.
	LeftOpen bool
	// LastMotion and LastContact are seconds since the last trigger.
	LastMotion    uint16
	LastContact   uint16
	ButtonPresses uint8
	EntryCount    uint8
	ExitCount     uint8
}

// Remote is the button remote. The three data bytes are passed through.
type Remote struct {
	Data1 uint8
	Data2 uint8
	Data3 uint8
}

// Bulb is the colour bulb.
type Bulb struct {
	Sequence   uint8
	On         bool
	Dim        uint8
	LightState uint8
}

// WaterLeak is the water leak detector.
type WaterLeak struct {
	Battery uint8
	// Status is the raw status byte; bit 0 set means a leak is detected.
	Status uint8
}

// Leak reports whether the detector currently senses water.
func (w WaterLeak) Leak() bool {
	return w.Status&0x01 != 0
}

func (Bot) payload()         {}
func (Curtain) payload()     {}
func (Blind) payload()       {}
func (Thermometer) payload() {}
func (IOTHSensor) payload()  {}
func (MeterProCO2) payload() {}
func (Presence) payload()    {}
func (Contact) payload()     {}
func (Remote) payload()      {}
func (Bulb) payload()        {}
func (WaterLeak) payload()   {}
