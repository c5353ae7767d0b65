package switchbot

import "fmt"

// Model is the one-byte discriminant identifying a SwitchBot device family.
type Model byte

// Known model discriminants, shown as their printable character.
const (
	ModelBot         Model = 'H'
	ModelCurtain     Model = 'c'
	ModelCurtain3    Model = '{'
	ModelBlindTilt   Model = 'x'
	ModelMeter       Model = 'T'
	ModelMeterPlus   Model = 'i'
	ModelPresence    Model = 's'
	ModelContact     Model = 'd'
	ModelRemote      Model = 'b'
	ModelBulb        Model = 'u'
	ModelIOSensor    Model = 'w'
	ModelWaterLeak   Model = '&'
	ModelMeterPro    Model = '4'
	ModelMeterProCO2 Model = '5'
)

var modelNames = map[Model]string{
	ModelBot:         "WoHand",
	ModelCurtain:     "WoCurtain",
	ModelCurtain3:    "WoCurtain3",
	ModelBlindTilt:   "WoBlindTilt",
	ModelMeter:       "WoSensorTH",
	ModelMeterPlus:   "WoSensorTHPlus",
	ModelPresence:    "WoPresence",
	ModelContact:     "WoContact",
	ModelRemote:      "WoRemote",
	ModelBulb:        "WoBulb",
	ModelIOSensor:    "WoIOSensorTH",
	ModelWaterLeak:   "WoLeakDetector",
	ModelMeterPro:    "WoMeterPro",
	ModelMeterProCO2: "WoMeterProCO2",
}

// Name returns the model name used in JSON snapshots, or "" when unknown.
func (m Model) Name() string {
	return modelNames[m]
}

// Known reports whether the discriminant has a decoding recipe.
func (m Model) Known() bool {
	_, ok := layouts[m]
	return ok
}

// String returns the discriminant as its character, or a hex form when it
// is not printable.
func (m Model) String() string {
	if m >= 0x20 && m < 0x7F {
		return string(rune(m))
	}
	return fmt.Sprintf("0x%02X", byte(m))
}

// UsesManufacturerData reports whether the model's primary payload is
// carried in manufacturer data.
func (m Model) UsesManufacturerData() bool {
	l, ok := layouts[m]
	return ok && l.manuf.required()
}
