// Package telemetry provides OpenTelemetry tracing and metrics export for featureflow.
//
// # Usage
//
//	cfg := telemetry.FromAppConfig(appCfg.Telemetry, version)
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// When enabled, New installs the tracer and meter providers globally, so the
// workflow engine spans and the MCP and HTTP OTEL instruments export over OTLP
// without further wiring.
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  sample_rate: 1.0
//	  export_interval: 15s
//
// # Error Handling
//
// Telemetry failures do not crash the application. If a provider cannot be
// created, the instance is marked degraded and the global no-op providers stay
// in place.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
