package config

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"
)

// Validate ensures the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Convert.Jobs < 1 {
		return errors.New("convert.jobs must be positive")
	}
	if _, err := c.MaxInputBytes(); err != nil {
		return err
	}
	if c.Clean.WeldTolerance < 0 {
		return errors.New("clean.weld_tolerance must not be negative")
	}
	if c.Clean.MinArea < 0 {
		return errors.New("clean.min_area must not be negative")
	}
	if c.Clean.AngularTolerance < 0 || c.Clean.AngularTolerance > 0.5 {
		return errors.New("clean.angular_tolerance must be between 0 and 0.5 radians")
	}
	switch c.Step.Unit {
	case "mm", "cm", "m":
	default:
		return errors.Errorf("step.unit %q must be one of mm, cm, m", c.Step.Unit)
	}
	if c.Step.Color != "" {
		if _, err := colors.Parse(c.Step.Color); err != nil {
			return errors.Wrapf(err, "step.color %q", c.Step.Color)
		}
	}
	if _, err := c.HeaderTime(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// HeaderTime returns the configured STEP header time, or the zero time when
// none is configured.
func (c *Config) HeaderTime() (time.Time, error) {
	if c.Step.Timestamp == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, c.Step.Timestamp)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "step.timestamp")
	}
	return ts, nil
}

// MaxInputBytes returns the input size limit in bytes. Zero means no limit.
func (c *Config) MaxInputBytes() (uint64, error) {
	if c.Convert.MaxInputSize == "" || c.Convert.MaxInputSize == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Convert.MaxInputSize)
	if err != nil {
		return 0, errors.Wrapf(err, "convert.max_input_size %q", c.Convert.MaxInputSize)
	}
	return n, nil
}
