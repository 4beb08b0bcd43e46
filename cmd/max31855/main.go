package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mikesmitty/max31855"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

func main() {
	app := &cli.App{
		Name:  "max31855",
		Usage: "read a MAX31855 thermocouple converter",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "bus", Usage: "Name of the SPI bus"},
			&cli.StringFlag{Name: "cs", Usage: "GPIO used as chip select, empty for the bus CS line"},
			&cli.Int64Flag{Name: "speed", Usage: "SPI clock in Hz"},
			&cli.StringSliceFlag{Name: "faults", Usage: "Faults to check: open, short_gnd, short_vcc, all, none"},
			&cli.DurationFlag{Name: "interval", Usage: "Time between readings"},
			&cli.IntFlag{Name: "count", Usage: "Number of readings, 0 for no limit"},
			&cli.BoolFlag{Name: "fahrenheit", Usage: "Report thermocouple temperature in °F"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "max31855: %s.\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) (err error) {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	faults, err := ParseFaults(cfg.FaultChecks)
	if err != nil {
		return err
	}

	var logger *zap.Logger
	if c.Bool("debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if _, err := host.Init(); err != nil {
		return err
	}

	sb, err := spireg.Open(cfg.Bus)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, sb.Close()) }()

	var cs gpio.PinOut
	if cfg.CS != "" {
		p := gpioreg.ByName(cfg.CS)
		if p == nil {
			return fmt.Errorf("no such pin %q", cfg.CS)
		}
		cs = p
	}

	dev, err := max31855.New(sb, cs, &max31855.Opts{
		Speed:       physic.Frequency(cfg.SpeedHz) * physic.Hertz,
		FaultChecks: faults,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if err := dev.Begin(); err != nil {
		return err
	}
	logger.Info("reading", zap.Stringer("dev", dev), zap.Uint8("fault_checks", uint8(dev.FaultChecks())))

	ticker := time.NewTicker(time.Duration(cfg.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for i := 0; cfg.Count == 0 || i < cfg.Count; i++ {
		if i > 0 {
			<-ticker.C
		}
		sample(logger, dev, cfg.Fahrenheit)
	}
	return nil
}

// sample logs one internal and one thermocouple reading. Read errors are
// logged and do not stop the loop.
func sample(logger *zap.Logger, dev *max31855.Dev, fahrenheit bool) {
	internal, err := dev.ReadInternal()
	if err != nil {
		logger.Warn("internal temperature", zap.Error(err))
	} else {
		logger.Info("internal temperature", zap.Float64("celsius", internal))
	}

	var t float64
	unit := "celsius"
	if fahrenheit {
		unit = "fahrenheit"
		t, err = dev.ReadFahrenheit()
	} else {
		t, err = dev.ReadCelsius()
	}
	switch {
	case errors.Is(err, max31855.ErrFault):
		fault, ferr := dev.ReadFault()
		if ferr != nil {
			logger.Warn("thermocouple fault", zap.Error(err), zap.NamedError("fault_read", ferr))
			return
		}
		logger.Warn("thermocouple fault", zap.Stringer("fault", fault), zap.Error(err))
	case err != nil:
		logger.Warn("thermocouple temperature", zap.Error(err))
	default:
		logger.Info("thermocouple temperature", zap.Float64(unit, t))
	}
}

// applyFlags overrides configuration file values with flags set on the
// command line.
func applyFlags(c *cli.Context, cfg *Config) {
	if c.IsSet("bus") {
		cfg.Bus = c.String("bus")
	}
	if c.IsSet("cs") {
		cfg.CS = c.String("cs")
	}
	if c.IsSet("speed") {
		cfg.SpeedHz = c.Int64("speed")
	}
	if c.IsSet("faults") {
		cfg.FaultChecks = c.StringSlice("faults")
	}
	if c.IsSet("interval") {
		cfg.IntervalMs = int(c.Duration("interval") / time.Millisecond)
	}
	if c.IsSet("count") {
		cfg.Count = c.Int("count")
	}
	if c.IsSet("fahrenheit") {
		cfg.Fahrenheit = c.Bool("fahrenheit")
	}
}
