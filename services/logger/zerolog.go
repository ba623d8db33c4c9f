package logsvc

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Beccio00/homeworks-web-app/core"
)

// NewZerolog writes to stdout (human readable in debug mode) and, if conf.Log.File is set, to a rotating file.
func NewZerolog(conf *core.Config) zerolog.Logger {
	var stdout io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if conf.Debug {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{stdout}
	if conf.Log.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   conf.Log.File,
			MaxSize:    conf.Log.MaxSize,
			MaxBackups: conf.Log.MaxBackups,
			MaxAge:     conf.Log.MaxAge,
			Compress:   true,
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("app", conf.AppName).
		Str("env", conf.Env).
		Logger()
}

// NewNopLogger is a disabled logger, for tests.
func NewNopLogger() *RollbarLogger {
	l := NewRollbarLogger(zerolog.Nop(), &core.Config{})
	l.Enable(false)
	return l
}
