package max31855

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Opts holds various configuration options for the sensor
type Opts struct {
	// Speed of the SPI clock. The MAX31855 supports up to 5MHz.
	Speed physic.Frequency
	// FaultChecks selects which faults invalidate a thermocouple reading.
	// Only the low three bits are used. The zero value, FaultNone, disables
	// fault checking; DefaultOptions enables FaultAll.
	FaultChecks Fault
	// Clock is used for the chip-select settle delays. Defaults to the wall clock.
	Clock  clock.Clock
	Logger *zap.Logger
}

func DefaultOptions() *Opts {
	return &Opts{
		Speed:       500 * physic.KiloHertz,
		FaultChecks: FaultAll,
	}
}

// New returns an unconfigured handle for a MAX31855 on port p.
//
// cs is the chip-select line. When cs is nil the port's own CS line is used
// and no GPIO is toggled by the driver. The bus is not touched until Begin or
// the first read.
func New(p spi.Port, cs gpio.PinOut, opts *Opts) (*Dev, error) {
	if p == nil {
		return nil, errors.New("max31855: nil spi port")
	}

	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Speed <= 0 {
		return nil, fmt.Errorf("max31855: invalid speed: %s", opts.Speed)
	}

	d := &Dev{
		p:     p,
		cs:    cs,
		speed: opts.Speed,
		mask:  opts.FaultChecks & FaultAll,
		clk:   opts.Clock,
		log:   opts.Logger,
		name:  p.String(),
	}
	if d.clk == nil {
		d.clk = clock.New()
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}

	return d, nil
}

// Dev is a handle to a single MAX31855.
//
// Dev does no locking. Callers sharing one SPI bus between several devices
// must serialize access themselves.
type Dev struct {
	p     spi.Port
	d     spi.Conn
	cs    gpio.PinOut
	speed physic.Frequency
	mask  Fault
	state State
	clk   clock.Clock
	log   *zap.Logger
	name  string
}

func (d *Dev) String() string {
	if d.cs == nil {
		return fmt.Sprintf("max31855{%s}", d.name)
	}
	return fmt.Sprintf("max31855{%s, cs=%s}", d.name, d.cs)
}

// State reports whether the bus has been set up.
func (d *Dev) State() State {
	return d.state
}

// Begin connects to the SPI port and parks chip-select high. It is called
// implicitly by the first read and is a no-op once the device is Ready.
func (d *Dev) Begin() error {
	if d.state == Ready {
		return nil
	}

	// A port can only be connected once, keep the conn across a failed Begin.
	if d.d == nil {
		mode := spi.Mode0
		if d.cs != nil {
			mode |= spi.NoCS
		}
		c, err := d.p.Connect(d.speed, mode, 8)
		if err != nil {
			return d.wrap(err)
		}
		d.d = c
	}

	// Chip select is active-low, park it deselected.
	if d.cs != nil {
		if err := d.cs.Out(gpio.High); err != nil {
			return d.wrap(err)
		}
	}

	d.state = Ready
	d.log.Debug("max31855 ready", zap.Stringer("port", d.p), zap.Stringer("speed", d.speed))
	return nil
}

// SetFaultChecks sets the faults which invalidate a thermocouple reading.
// Bits outside FaultAll are ignored.
func (d *Dev) SetFaultChecks(faults Fault) {
	d.mask = faults & FaultAll
}

func (d *Dev) FaultChecks() Fault {
	return d.mask
}

// ReadFrame performs one 32-bit read of the device.
func (d *Dev) ReadFrame() (Frame, error) {
	if err := d.Begin(); err != nil {
		return 0, err
	}

	if err := d.selectChip(); err != nil {
		return 0, d.wrap(err)
	}

	var w, r [frameLen]byte
	txErr := d.d.Tx(w[:], r[:])

	if err := d.deselectChip(); err != nil && txErr == nil {
		return 0, d.wrap(err)
	}
	if txErr != nil {
		return 0, d.wrap(fmt.Errorf("%w: %v", ErrNotReady, txErr))
	}

	f := ParseFrame(r[:])
	d.log.Debug("max31855 frame", zap.Stringer("frame", f))
	return f, nil
}

// ReadInternal returns the temperature of the chip's reference junction in °C.
func (d *Dev) ReadInternal() (float64, error) {
	f, err := d.readData()
	if err != nil {
		return 0, err
	}
	return f.Internal(), nil
}

// ReadCelsius returns the thermocouple temperature in °C.
//
// A *FaultError is returned when a fault enabled with SetFaultChecks is
// present, use errors.Is(err, ErrFault) to test for it.
func (d *Dev) ReadCelsius() (float64, error) {
	f, err := d.readData()
	if err != nil {
		return 0, err
	}
	c, err := f.Celsius(d.mask)
	if err != nil {
		d.log.Debug("max31855 reading rejected", zap.Stringer("frame", f), zap.Error(err))
		return 0, d.wrap(err)
	}
	return c, nil
}

// ReadFahrenheit returns the thermocouple temperature in °F.
func (d *Dev) ReadFahrenheit() (float64, error) {
	c, err := d.ReadCelsius()
	if err != nil {
		return 0, err
	}
	return celsiusToFahrenheit(c), nil
}

// ReadFault reads a fresh frame and returns its fault code. The fault mask is
// not applied.
func (d *Dev) ReadFault() (Fault, error) {
	f, err := d.ReadFrame()
	if err != nil {
		return 0, err
	}
	return f.Fault(), nil
}

// Sense reads the thermocouple temperature.
func (d *Dev) Sense(e *physic.Env) error {
	c, err := d.ReadCelsius()
	if err != nil {
		return err
	}
	e.Temperature = physic.Temperature(c*1000)*physic.MilliCelsius + physic.ZeroCelsius
	return nil
}

// 14-Bit thermocouple resolution of 0.25°C
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Kelvin / 4
}

// Halt implements conn.Resource. The MAX31855 converts continuously and has
// nothing to stop.
func (d *Dev) Halt() error {
	return nil
}

// readData reads a frame for a temperature conversion. An all-zero frame is
// treated as a failed transfer.
func (d *Dev) readData() (Frame, error) {
	f, err := d.ReadFrame()
	if err != nil {
		return 0, err
	}
	if f == 0 {
		return 0, d.wrap(ErrNoData)
	}
	return f, nil
}

func (d *Dev) selectChip() error {
	if d.cs != nil {
		if err := d.cs.Out(gpio.Low); err != nil {
			return err
		}
	}
	d.clk.Sleep(settleDelay)
	return nil
}

func (d *Dev) deselectChip() error {
	if d.cs != nil {
		if err := d.cs.Out(gpio.High); err != nil {
			return err
		}
	}
	d.clk.Sleep(settleDelay)
	return nil
}

func (d *Dev) wrap(err error) error {
	return fmt.Errorf("%s: %w", strings.ToLower(d.name), err)
}

var _ conn.Resource = &Dev{}
