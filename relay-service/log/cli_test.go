package log

import (
	"bytes"
	"encoding/json"
	"flag"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]any{
		"trace": log.LevelTrace,
		"DEBUG": log.LevelDebug,
		"info":  log.LevelInfo,
		" warn": log.LevelWarn,
		"eror":  log.LevelError,
		"crit":  log.LevelCrit,
	} {
		lvl, err := ParseLevel(name)
		require.NoError(t, err, name)
		require.Equal(t, want, lvl, name)
	}
	_, err := ParseLevel("loud")
	require.ErrorContains(t, err, "unknown level")
}

func TestFormatFlagValue(t *testing.T) {
	fv := NewFormatFlagValue(FormatText)
	require.NoError(t, fv.Set("json"))
	require.Equal(t, FormatJSON, fv.FormatType())
	require.Error(t, fv.Set("yaml"))
	require.Equal(t, FormatJSON, fv.FormatType())
}

func runApp(t *testing.T, args ...string) CLIConfig {
	var cfg CLIConfig
	app := cli.NewApp()
	app.Flags = CLIFlags("RELAYER")
	app.Action = func(ctx *cli.Context) error {
		cfg = ReadCLIConfig(ctx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"app"}, args...)))
	return cfg
}

func TestReadCLIConfig(t *testing.T) {
	cfg := runApp(t)
	require.Equal(t, log.LevelInfo, cfg.Level)
	require.Equal(t, FormatText, cfg.Format)

	cfg = runApp(t, "--log.level=debug", "--log.format=logfmt", "--log.color=false")
	require.Equal(t, log.LevelDebug, cfg.Level)
	require.Equal(t, FormatLogFmt, cfg.Format)
	require.False(t, cfg.Color)
}

func TestReadCLIConfigFromEnv(t *testing.T) {
	t.Setenv("RELAYER_LOG_LEVEL", "warn")
	t.Setenv("RELAYER_LOG_FORMAT", "json")
	cfg := runApp(t)
	require.Equal(t, log.LevelWarn, cfg.Level)
	require.Equal(t, FormatJSON, cfg.Format)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, CLIConfig{Level: log.LevelInfo, Format: FormatJSON})
	l.Debug("hidden")
	l.Info("relay cycle done", "slot", uint64(42))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "relay cycle done", rec["msg"])
	require.EqualValues(t, 42, rec["slot"])
}

func TestNewLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, CLIConfig{Level: log.LevelWarn, Format: FormatLogFmt})
	l.Info("quiet")
	require.Zero(t, buf.Len())
	l.Warn("loud")
	require.Contains(t, buf.String(), "msg=loud")
}

func TestLevelFlagImplementsFlagValue(t *testing.T) {
	var _ flag.Value = NewLevelFlagValue(log.LevelInfo)
	var _ flag.Value = NewFormatFlagValue(FormatJSON)
}
