// Package log is the engine's structured-logging facade: a thin layer
// over zap that keeps call sites terse (Info("msg", "key", val, ...))
// in the teacher's own logging idiom, while giving every pipeline
// component one place to add fields like chain/dex/pool/pipeline-run.
package log

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger mirrors the small surface the pipeline packages actually use.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)
	With(ctx ...any) Logger
}

type zapLogger struct {
	z *zap.SugaredLogger
}

func (l *zapLogger) Trace(msg string, ctx ...any) { l.z.Debugw(msg, ctx...) }
func (l *zapLogger) Debug(msg string, ctx ...any) { l.z.Debugw(msg, ctx...) }
func (l *zapLogger) Info(msg string, ctx ...any)  { l.z.Infow(msg, ctx...) }
func (l *zapLogger) Warn(msg string, ctx ...any)  { l.z.Warnw(msg, ctx...) }
func (l *zapLogger) Error(msg string, ctx ...any) { l.z.Errorw(msg, ctx...) }
func (l *zapLogger) Crit(msg string, ctx ...any)  { l.z.Fatalw(msg, ctx...) }

func (l *zapLogger) With(ctx ...any) Logger {
	return &zapLogger{z: l.z.With(ctx...)}
}

var (
	rootOnce sync.Once
	root     atomic.Value // Logger
)

// FileConfig configures rotation for a file-backed sink, used by the
// daemon entrypoint. A zero value means "stderr only".
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init installs the root logger. Safe to call once at process startup;
// subsequent calls replace the root used by package-level functions.
func Init(jsonFormat bool, file FileConfig) Logger {
	var cores []zapcore.Core

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.InfoLevel))

	if file.Path != "" {
		w := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    orDefault(file.MaxSizeMB, 100),
			MaxBackups: orDefault(file.MaxBackups, 5),
			MaxAge:     orDefault(file.MaxAgeDays, 28),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel))
	}

	core := zapcore.NewTee(cores...)
	z := zap.New(core).Sugar()
	l := &zapLogger{z: z}
	root.Store(l)
	return l
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

// Root returns the process-global logger, initializing a stderr-only
// default the first time it's called.
func Root() Logger {
	rootOnce.Do(func() {
		if root.Load() == nil {
			Init(false, FileConfig{})
		}
	})
	return root.Load().(Logger)
}

func Trace(msg string, ctx ...any) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...any)  { Root().Crit(msg, ctx...) }

// New returns a child logger scoped with additional fields, e.g.
// log.New("chain", "arbitrum", "dex", "uniswap_v3").
func New(ctx ...any) Logger { return Root().With(ctx...) }
