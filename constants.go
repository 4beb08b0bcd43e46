package max31855

import "time"

// Fault is a set of thermocouple wiring fault flags as reported in the low
// three bits of a frame. It is also used as the mask selecting which faults
// invalidate a thermocouple reading.
type Fault uint8

const (
	FaultNone     Fault = 0x00 // Disable all fault checks
	FaultOpen     Fault = 0x01 // Thermocouple open circuit
	FaultShortGND Fault = 0x02 // Thermocouple shorted to GND
	FaultShortVCC Fault = 0x04 // Thermocouple shorted to VCC
	FaultAll      Fault = 0x07 // Enable all fault checks
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "no fault"
	case FaultOpen:
		return "open circuit"
	case FaultShortGND:
		return "short to GND"
	case FaultShortVCC:
		return "short to VCC"
	default:
		return "unknown fault"
	}
}

// State of a Dev handle.
type State int

const (
	Unconfigured State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Ready:
		return "ready"
	default:
		return "invalid"
	}
}

// Frame layout
const (
	frameLen = 4

	faultBits uint32 = 0x07

	internalShift    = 4
	internalMask     uint32 = 0x7FF
	internalSignBit  uint32 = 0x800
	internalSignFill uint32 = 0xF800
	internalLSB             = 0.0625

	thermoShift    = 18
	thermoMask     uint32 = 0x3FFF
	thermoSignBit  uint32 = 0x80000000
	thermoSignFill uint32 = 0xFFFFC000
	thermoLSB             = 0.25
)

// Chip-select settle time after each edge.
const settleDelay = time.Millisecond
