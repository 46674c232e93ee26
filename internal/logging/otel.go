package logging

import (
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap/zapcore"
)

// instrumentationName identifies featureflow records in the OTEL log pipeline.
const instrumentationName = "github.com/fyrsmithlabs/featureflow"

// newCore tees the stream core and the OTEL bridge core, then applies sampling.
func newCore(cfg *Config, otelProvider log.LoggerProvider, ws zapcore.WriteSyncer) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stream != StreamNone && ws != nil {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, cfg.Level))
	}

	if cfg.Output.OTEL {
		if otelProvider == nil {
			otelProvider = global.GetLoggerProvider()
		}
		cores = append(cores, otelzap.NewCore(instrumentationName,
			otelzap.WithLoggerProvider(otelProvider),
		))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}

	return newSampledCore(core, cfg.Sampling), nil
}
