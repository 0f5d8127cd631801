// Package telemetry wires OpenTelemetry tracing for outbound upstream calls.
// Spans are produced by otelhttp around the shared upstream transport and
// exported as JSON lines through the stdout exporter.
package telemetry

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitTracer 安装全局 TracerProvider，返回的函数用于在退出前刷新并关闭 exporter。
// w 为空时写入 stdout。
func InitTracer(serviceName string, w io.Writer, logger *logrus.Logger) (func(context.Context) error, error) {
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"action":  "tracing_init",
			"service": serviceName,
		}).Info("OpenTelemetry initialized")
	}

	return tp.Shutdown, nil
}
