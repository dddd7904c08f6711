package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log      *zap.Logger
	initOnce sync.Once
)

// Init initializes zap logger depending on the environment. deviceID, when
// set, is attached to every line so logs shipped from several terminals can
// be told apart.
func Init(env string, deviceID ...string) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if len(deviceID) > 0 && deviceID[0] != "" {
		opts = append(opts, zap.Fields(zap.String("device_id", deviceID[0])))
	}

	var err error
	log, err = cfg.Build(opts...)
	if err != nil {
		panic(err)
	}
}

// L returns the global logger.
func L() *zap.Logger {
	initOnce.Do(func() {
		if log == nil {
			Init(os.Getenv("APP_ENV"), os.Getenv("DEVICE_ID"))
		}
	})
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Replace swaps the global logger, typically for a zaptest observer, and
// returns a func that restores the previous one.
func Replace(l *zap.Logger) (restore func()) {
	L()
	prev := log
	log = l
	return func() { log = prev }
}

// Sync flushes logs.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
