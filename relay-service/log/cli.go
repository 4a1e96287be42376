package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

// CLIFlags creates flag definitions for the logging utils.
// The generic flag values are mutated by urfave when parsed, so call it once
// per App.
func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.GenericFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output",
			Value:   NewLevelFlagValue(log.LevelInfo),
			EnvVars: prefixEnvVars(envPrefix, "LOG_LEVEL"),
		},
		&cli.GenericFlag{
			Name:    FormatFlagName,
			Usage:   "Format the log output. Supported formats: 'text', 'terminal', 'logfmt', 'json'",
			Value:   NewFormatFlagValue(FormatText),
			EnvVars: prefixEnvVars(envPrefix, "LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: prefixEnvVars(envPrefix, "LOG_COLOR"),
		},
	}
}

func prefixEnvVars(prefix, name string) []string {
	return []string{prefix + "_" + name}
}

// LevelFlagValue is a value type for cli.GenericFlag
type LevelFlagValue slog.Level

var _ cli.Generic = (*LevelFlagValue)(nil)

func NewLevelFlagValue(lvl slog.Level) *LevelFlagValue {
	return (*LevelFlagValue)(&lvl)
}

func (fv *LevelFlagValue) Set(value string) error {
	value = strings.ToLower(value)
	lvl, err := ParseLevel(value)
	if err != nil {
		return err
	}
	*fv = LevelFlagValue(lvl)
	return nil
}

func (fv LevelFlagValue) String() string {
	return strings.ToLower(log.LevelString(slog.Level(fv)))
}

func (fv LevelFlagValue) Level() slog.Level {
	return slog.Level(fv).Level()
}

func (fv *LevelFlagValue) Clone() any {
	cpy := *fv
	return &cpy
}

// ParseLevel accepts the level names used by the terminal handler.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("unknown level: %q", s)
	}
}

// FormatType defines a type of log format.
// Supported formats: 'text', 'terminal', 'logfmt', 'json'
type FormatType string

const (
	FormatText     FormatType = "text"
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

// FormatHandler returns the correct slog handler factory for the provided format.
func FormatHandler(ft FormatType, color bool) func(io.Writer, slog.Level) slog.Handler {
	termColorHandler := func(w io.Writer, lvl slog.Level) slog.Handler {
		return log.NewTerminalHandlerWithLevel(w, lvl, color)
	}
	logfmtHandler := func(w io.Writer, lvl slog.Level) slog.Handler {
		return log.LogfmtHandlerWithLevel(w, lvl)
	}
	switch ft {
	case FormatJSON:
		return func(w io.Writer, lvl slog.Level) slog.Handler {
			return log.JSONHandlerWithLevel(w, lvl)
		}
	case FormatText:
		if color {
			return termColorHandler
		}
		return logfmtHandler
	case FormatTerminal:
		return termColorHandler
	case FormatLogFmt:
		return logfmtHandler
	default:
		panic(fmt.Errorf("failed to create slog.Handler factory for format-type=%q and color=%v", ft, color))
	}
}

func (ft FormatType) String() string {
	return string(ft)
}

// FormatFlagValue is a value type for cli.GenericFlag
type FormatFlagValue FormatType

var _ cli.Generic = (*FormatFlagValue)(nil)

func NewFormatFlagValue(fmtType FormatType) *FormatFlagValue {
	return (*FormatFlagValue)(&fmtType)
}

func (fv *FormatFlagValue) Set(value string) error {
	switch FormatType(value) {
	case FormatText, FormatTerminal, FormatLogFmt, FormatJSON:
		*fv = FormatFlagValue(value)
		return nil
	default:
		return fmt.Errorf("unrecognized log-format: %q", value)
	}
}

func (fv FormatFlagValue) String() string {
	return FormatType(fv).String()
}

func (fv FormatFlagValue) FormatType() FormatType {
	return FormatType(fv)
}

func (fv *FormatFlagValue) Clone() any {
	cpy := *fv
	return &cpy
}

type CLIConfig struct {
	Level  slog.Level
	Color  bool
	Format FormatType
}

func (cfg CLIConfig) String() string {
	return fmt.Sprintf("level=%s format=%s color=%v", log.LevelString(cfg.Level), cfg.Format, cfg.Color)
}

// ReadCLIConfig reads the logger config from the CLI context.
func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	cfg := DefaultCLIConfig()
	if lvl, ok := ctx.Generic(LevelFlagName).(*LevelFlagValue); ok {
		cfg.Level = lvl.Level()
	}
	if ft, ok := ctx.Generic(FormatFlagName).(*FormatFlagValue); ok {
		cfg.Format = ft.FormatType()
	}
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg
}

// DefaultCLIConfig creates a default log configuration.
// Color defaults to true if terminal is detected.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LevelInfo,
		Format: FormatText,
		Color:  isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("TERM") != "dumb",
	}
}

// NewLogger creates a logger writing to wr and installs it as the process
// default, so libraries logging through the root logger follow the config.
func NewLogger(wr io.Writer, cfg CLIConfig) log.Logger {
	h := FormatHandler(cfg.Format, cfg.Color)(wr, cfg.Level)
	l := log.NewLogger(h)
	log.SetDefault(l)
	return l
}

// SetupDefaults installs a default logger writing to stderr, used until the
// CLI config is read.
func SetupDefaults() {
	NewLogger(os.Stderr, DefaultCLIConfig())
}
