// Package telemetry provides the observability stack for composer.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and
// Prometheus metrics behind a single Telemetry bundle built from Config.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
// Logs always go to stderr (or a file) so they never interleave with the
// command output written to stdout:
//
//	logger := tel.Logger.NewComponentLogger("executor")
//	logger.WithStack("web").Info("Starting stack")
//
// # Tracing
//
// The engine receives tel.Tracer.Tracer() and opens a "batch.execute" span
// per lifecycle batch with one child span per stack action. Exporters:
// none, stdout and otlp (gRPC).
//
// # Metrics
//
// Metrics is passed to the engine as its MetricsRecorder. Because composer
// runs as a one-shot command, metrics are not served; Shutdown writes them
// to MetricsConfig.TextfilePath for the node-exporter textfile collector.
// A disabled Metrics is a valid no-op.
package telemetry
