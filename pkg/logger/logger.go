package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/craftbill/pkg/config"
)

// New builds the process logger. Dev environments get debug level and
// console-friendly caller output; everything else uses the production JSON config.
func New(cfg *config.Config) (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	if cfg != nil && !cfg.IsProd() {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "time"
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("service", "craftbill"), nil
}

var Module = fx.Options(
	fx.Provide(New),
)
