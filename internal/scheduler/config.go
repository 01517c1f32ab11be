package scheduler

import "time"

// Config controls the background sweep loop.
type Config struct {
	PollInterval       time.Duration
	BatchSize          int
	InvoiceGraceWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:       30 * time.Second,
		BatchSize:          50,
		InvoiceGraceWindow: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.InvoiceGraceWindow <= 0 {
		c.InvoiceGraceWindow = defaults.InvoiceGraceWindow
	}
	return c
}
