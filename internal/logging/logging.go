// Package logging builds the log15 loggers handed to every service.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
)

// Config selects level and format of the root logger.
type Config struct {
	Level string `yaml:"level"`
	// Format is terminal or logfmt.
	Format string `yaml:"format"`
}

// DefaultConfig logs info and above in terminal format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "terminal"}
}

// Validate checks level and format.
func (c *Config) Validate() error {
	if _, err := log15.LvlFromString(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch c.Format {
	case "", "terminal", "logfmt":
		return nil
	}
	return fmt.Errorf("invalid log format %q", c.Format)
}

// New creates a root logger writing to w; a nil w means stderr.
func New(config Config, w io.Writer, ctx ...interface{}) (log15.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	level, _ := log15.LvlFromString(strings.ToLower(config.Level))
	format := log15.TerminalFormat()
	if config.Format == "logfmt" {
		format = log15.LogfmtFormat()
	}
	logger := log15.New(ctx...)
	logger.SetHandler(log15.LvlFilterHandler(level, log15.StreamHandler(w, format)))
	return logger, nil
}

// Discard returns a logger that drops every record.
func Discard() log15.Logger {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return logger
}

// Or returns logger, or a discarding logger when it is nil.
func Or(logger log15.Logger) log15.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}
