package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core so that entries below Error are sampled per tick.
// Error and above always pass.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	unsampled := &levelRangeCore{Core: core, min: zapcore.ErrorLevel, hasMin: true}
	sampled := zapcore.NewSamplerWithOptions(
		&levelRangeCore{Core: core, max: zapcore.WarnLevel, hasMax: true},
		cfg.Tick.Duration(),
		cfg.Initial,
		cfg.Thereafter,
	)

	return zapcore.NewTee(unsampled, sampled)
}

// levelRangeCore passes only entries inside [min, max].
type levelRangeCore struct {
	zapcore.Core
	min, max       zapcore.Level
	hasMin, hasMax bool
}

func (c *levelRangeCore) Enabled(lvl zapcore.Level) bool {
	if c.hasMin && lvl < c.min {
		return false
	}
	if c.hasMax && lvl > c.max {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelRangeCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelRangeCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.Core = c.Core.With(fields)
	return &clone
}
