package config

import (
	"runtime"
	"strings"
)

func (c *Config) normalize() {
	c.Convert.Input = strings.TrimSpace(c.Convert.Input)
	if c.Convert.Input == "" {
		c.Convert.Input = defaultInput
	}
	c.Convert.OutputDir = strings.TrimSpace(c.Convert.OutputDir)
	if c.Convert.OutputDir == "" {
		c.Convert.OutputDir = defaultOutputDir
	}
	if c.Convert.Jobs <= 0 {
		c.Convert.Jobs = runtime.NumCPU()
	}
	if c.Convert.OpenSCADTimeout <= 0 {
		c.Convert.OpenSCADTimeout = defaultTimeout
	}
	c.Convert.MaxInputSize = strings.TrimSpace(c.Convert.MaxInputSize)
	if c.Convert.MaxInputSize == "" {
		c.Convert.MaxInputSize = defaultMaxInputSize
	}

	c.Step.ProductName = strings.TrimSpace(c.Step.ProductName)
	c.Step.Author = strings.TrimSpace(c.Step.Author)
	c.Step.Organization = strings.TrimSpace(c.Step.Organization)
	c.Step.Color = strings.TrimSpace(c.Step.Color)
	c.Step.Unit = strings.ToLower(strings.TrimSpace(c.Step.Unit))
	if c.Step.Unit == "" {
		c.Step.Unit = defaultUnit
	}
	c.Step.Timestamp = strings.TrimSpace(c.Step.Timestamp)

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
