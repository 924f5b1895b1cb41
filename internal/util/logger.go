package util

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger logs to stderr so command output on stdout stays clean.
// LOG_LEVEL overrides the info default.
func NewZapLogger() *zap.SugaredLogger {
	sink := zapcore.Lock(zapcore.AddSync(os.Stderr))

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zapcore.ParseLevel(v); err == nil {
			level.SetLevel(parsed)
		}
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), sink, level)

	return zap.New(core).Sugar()
}
