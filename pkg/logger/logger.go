package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base *zap.Logger
var sugar *zap.SugaredLogger

// Init builds the process-wide logger. "dev" gets a colored console
// encoder; anything else ("staging", "prod") logs JSON. The service name
// is stamped on every entry.
func Init(service, env, level string) {
	var cfg zap.Config

	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	base = l.With(zap.String("service", service))
	sugar = base.Sugar()

	sugar.Infow("logger initialized",
		"env", env,
		"level", level,
	)
}

// L returns the structured logger.
func L() *zap.Logger {
	if base == nil {
		Init("tracker", "dev", "info")
	}
	return base
}

// S returns the sugared logger for printf-style call sites.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("tracker", "dev", "info")
	}
	return sugar
}

// Sync flushes buffered entries; defer it from main.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
