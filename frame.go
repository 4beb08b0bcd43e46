package max31855

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when the SPI transport could not complete a
	// transfer.
	ErrNotReady = errors.New("transport not ready")
	// ErrNoData is returned by temperature reads when the device returned an
	// all-zero frame.
	ErrNoData = errors.New("no data")
	// ErrFault matches any *FaultError with errors.Is.
	ErrFault = errors.New("thermocouple fault")
)

// FaultError reports a thermocouple reading rejected because a fault bit
// enabled in Mask was set in the frame.
type FaultError struct {
	Fault Fault
	Mask  Fault
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("fault detected (%#02x): %s", uint8(e.Fault), e.Fault)
}

func (e *FaultError) Is(target error) bool {
	return target == ErrFault
}

// Frame is the raw 32-bit word clocked out of the MAX31855 in one read.
//
//	bits 31..18  thermocouple temperature, signed, 0.25°C/LSB
//	bit  16      fault (any)
//	bits 15..4   internal temperature, signed, 0.0625°C/LSB
//	bit  2       short to VCC
//	bit  1       short to GND
//	bit  0       open circuit
type Frame uint32

// ParseFrame assembles a frame from the bytes received on the bus, first byte
// most significant.
func ParseFrame(b []byte) Frame {
	return Frame(binary.BigEndian.Uint32(b))
}

// Internal returns the reference junction temperature in °C. It does not
// consult any fault bits.
func (f Frame) Internal() float64 {
	// ignore the bottom 4 bits, they carry thermocouple status
	v := uint32(f) >> internalShift

	internal := int16(v & internalMask)
	if v&internalSignBit != 0 {
		internal = int16(uint16(internalSignFill | (v & internalMask)))
	}
	return float64(internal) * internalLSB
}

// Celsius returns the thermocouple temperature in °C, or a *FaultError if any
// fault bit selected by mask is set in the frame.
func (f Frame) Celsius(mask Fault) (float64, error) {
	// The mask is applied to the whole word, the fault flags live in bits 0..2.
	if fault := uint32(f) & uint32(mask&FaultAll); fault != 0 {
		return 0, &FaultError{Fault: Fault(fault), Mask: mask & FaultAll}
	}

	v := uint32(f)
	if v&thermoSignBit != 0 {
		v = thermoSignFill | ((v >> thermoShift) & thermoMask)
	} else {
		v >>= thermoShift
	}
	return float64(int32(v)) * thermoLSB, nil
}

// Fahrenheit converts the thermocouple temperature to °F. Faults are
// propagated unchanged.
func (f Frame) Fahrenheit(mask Fault) (float64, error) {
	c, err := f.Celsius(mask)
	if err != nil {
		return 0, err
	}
	return celsiusToFahrenheit(c), nil
}

// Fault returns the fault code held in the low three bits.
func (f Frame) Fault() Fault {
	return Fault(uint32(f) & faultBits)
}

func (f Frame) String() string {
	return fmt.Sprintf("0x%08x", uint32(f))
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
