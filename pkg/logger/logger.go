package logger

import (
	"drip-controlplane/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("zap",
	fx.Provide(
		New,
	),
)

// New builds the process logger and installs it as the zap global.
// Development keeps the console encoder; production emits JSON on stdout.
func New(cfg *config.Config) *zap.Logger {
	log := zap.Must(zap.NewDevelopment())
	if cfg.AppEnv == "production" {
		log = zap.Must(productionConfig().Build())
	}

	log = log.With(
		zap.String("env", cfg.AppEnv),
		zap.String("service_name", cfg.AppName),
		zap.String("service_version", cfg.AppVersion),
	)

	zap.ReplaceGlobals(log)

	return log
}

func productionConfig() zap.Config {
	c := zap.NewProductionConfig()
	c.Encoding = "json"
	c.OutputPaths = []string{"stdout"}
	c.ErrorOutputPaths = []string{"stderr"}
	c.EncoderConfig.TimeKey = "timestamp"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.EncoderConfig.LevelKey = "severity"
	c.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	c.EncoderConfig.CallerKey = "caller"
	c.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	c.EncoderConfig.StacktraceKey = "stacktrace"
	return c
}
