// Package telemetry sets up OpenTelemetry tracing for the client.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Options configures tracing for one CLI run.
type Options struct {
	ServiceName string

	// Command is the subcommand being run. It is set on the resource so
	// spans from play and transcript runs can be told apart in one file.
	Command string

	// Path receives one JSON span per line and is appended to across runs.
	// Empty means stderr.
	Path string

	// Writer, when set, takes precedence over Path.
	Writer io.Writer
}

// InitTracer installs a global tracer provider exporting to the configured
// output. The returned function flushes pending spans and releases the
// output.
func InitTracer(opts Options, logger *slog.Logger) (func(context.Context) error, error) {
	w, closeOutput, err := openOutput(opts)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeOutput()
		return nil, err
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(opts.ServiceName)}
	if opts.Command != "" {
		attrs = append(attrs, attribute.String("blackstories.command", opts.Command))
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
	if err != nil {
		closeOutput()
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized",
		slog.String("service", opts.ServiceName),
		slog.String("output", outputName(opts)),
	)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), closeOutput())
	}, nil
}

func openOutput(opts Options) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch {
	case opts.Writer != nil:
		return opts.Writer, noop, nil
	case opts.Path == "":
		return os.Stderr, noop, nil
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, f.Close, nil
}

func outputName(opts Options) string {
	switch {
	case opts.Writer != nil:
		return "writer"
	case opts.Path == "":
		return "stderr"
	}
	return opts.Path
}
