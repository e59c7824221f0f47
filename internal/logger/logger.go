package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/example/bug-intake/internal/config"
)

// New creates the root logger. LOG_LEVEL in the environment wins over the
// configured level; INFO is the fallback.
func New(cfg *config.Config, name string) hclog.Logger {
	return NewWithOutput(cfg, name, os.Stdout)
}

func NewWithOutput(cfg *config.Config, name string, output io.Writer) hclog.Logger {
	level := ""
	jsonFormat := false
	if cfg != nil {
		level = cfg.Logger.Level
		jsonFormat = cfg.Logger.JSONFormat
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		JSONFormat: jsonFormat,
		Output:     output,
		Level:      ParseLevel(level),
	})
}

func ParseLevel(level string) hclog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		return hclog.Info
	}
}
