package logging

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// New builds a zap logger for the given environment. Anything other than
// "development" gets the production JSON encoder.
func New(env string) *zap.Logger {
	var cfg zap.Config
	if env == EnvDevelopment {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.CallerKey = ""
		cfg.DisableStacktrace = true
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.CallerKey = "caller"
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Printf("build zap logger for env %q, falling back to no-op: %v", env, err)
		return zap.NewNop()
	}
	return logger
}
