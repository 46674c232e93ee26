// Package logging provides structured logging for featureflow.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - a stream output (stderr by default) and an optional OpenTelemetry bridge
//   - correlation fields from context: workflow.id, request.id, trace_id
//   - key and pattern based secret redaction
//   - sampling below Error
//
// Usage:
//
//	cfg, err := logging.FromAppConfig(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithWorkflowID(ctx, id)
//	logger.Info(ctx, "phase advanced", zap.String("to", "spec_created"))
//
// Tests use NewTestLogger and its Assert helpers.
package logging
