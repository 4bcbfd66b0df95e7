package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"contrib.go.opencensus.io/exporter/aws"
	"contrib.go.opencensus.io/exporter/jaeger"
	"contrib.go.opencensus.io/exporter/prometheus"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"contrib.go.opencensus.io/exporter/zipkin"
	"contrib.go.opencensus.io/integrations/ocsql"
	datadog "github.com/DataDog/opencensus-go-exporter-datadog"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"

	"github.com/ticketpulse/ticketpulse/config"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
)

// Telemetry owns the exporters registered by InitTracing. Shutdown flushes
// buffered spans and stops the metrics server.
type Telemetry struct {
	logger        logger.Logger
	metricsServer *http.Server
	flushers      []func()
}

// InitTracing initializes OpenCensus tracing and metrics with the given configuration.
// A disabled configuration returns an empty Telemetry.
// codecov:ignore:start
func InitTracing(cfg *config.TracingConfig, log logger.Logger) (*Telemetry, error) {
	t := &Telemetry{logger: log}
	if !cfg.Enabled {
		return t, nil
	}

	trace.ApplyConfig(trace.Config{
		DefaultSampler: trace.ProbabilitySampler(cfg.SamplingProbability),
	})

	if err := t.initTraceExporter(cfg); err != nil {
		return nil, err
	}

	if err := t.initMetricsExporters(cfg); err != nil {
		t.flush()
		return nil, err
	}

	if err := RegisterHTTPServerViews(); err != nil {
		return nil, fmt.Errorf("failed to register HTTP server views: %w", err)
	}

	log.WithField("trace_exporter", cfg.TraceExporter).
		WithField("metrics_exporter", cfg.MetricsExporter).
		Info("OpenCensus initialized")
	return t, nil
}

// initTraceExporter registers the configured trace exporter
func (t *Telemetry) initTraceExporter(cfg *config.TracingConfig) error {
	var (
		exporter trace.Exporter
		flush    func()
		err      error
	)

	switch cfg.TraceExporter {
	case "none", "":
		t.logger.Debug("No trace exporter configured")
		return nil
	case "jaeger":
		exporter, flush, err = newJaegerExporter(cfg)
	case "zipkin":
		exporter, flush, err = newZipkinExporter(cfg)
	case "stackdriver":
		exporter, flush, err = newStackdriverTraceExporter(cfg)
	case "datadog":
		exporter, flush, err = newDatadogExporter(cfg)
	case "xray":
		exporter, flush, err = newXRayExporter(cfg)
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return err
	}

	trace.RegisterExporter(exporter)
	t.flushers = append(t.flushers, flush)
	t.logger.WithField("exporter", cfg.TraceExporter).Info("Trace exporter initialized")
	return nil
}

// initMetricsExporters registers every exporter of the comma-separated
// metrics exporter list, then the database and analytics views
func (t *Telemetry) initMetricsExporters(cfg *config.TracingConfig) error {
	if cfg.MetricsExporter == "none" || cfg.MetricsExporter == "" {
		t.logger.Debug("No metrics exporter configured")
		return nil
	}

	for _, name := range strings.Split(cfg.MetricsExporter, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var err error
		switch name {
		case "prometheus":
			err = t.initPrometheusExporter(cfg)
		case "stackdriver":
			err = t.initStackdriverMetricsExporter(cfg)
		case "datadog":
			err = t.initDatadogMetricsExporter(cfg)
		default:
			return fmt.Errorf("unsupported metrics exporter: %s", name)
		}
		if err != nil {
			return fmt.Errorf("failed to initialize %s metrics exporter: %w", name, err)
		}

		t.logger.WithField("exporter", name).Info("Metrics exporter initialized")
	}

	if err := view.Register(ocsql.DefaultViews...); err != nil {
		return fmt.Errorf("failed to register database views: %w", err)
	}
	if err := RegisterAnalyticsViews(); err != nil {
		return fmt.Errorf("failed to register analytics views: %w", err)
	}

	return nil
}

func newJaegerExporter(cfg *config.TracingConfig) (trace.Exporter, func(), error) {
	if cfg.JaegerEndpoint == "" {
		return nil, nil, errors.New("Jaeger endpoint is required for Jaeger exporter")
	}

	je, err := jaeger.NewExporter(jaeger.Options{
		CollectorEndpoint: cfg.JaegerEndpoint,
		ServiceName:       cfg.ServiceName,
		Process: jaeger.Process{
			ServiceName: cfg.ServiceName,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	return je, je.Flush, nil
}

func newZipkinExporter(cfg *config.TracingConfig) (trace.Exporter, func(), error) {
	if cfg.ZipkinEndpoint == "" {
		return nil, nil, errors.New("Zipkin endpoint is required for Zipkin exporter")
	}

	reporter := zipkinhttp.NewReporter(cfg.ZipkinEndpoint)
	return zipkin.NewExporter(reporter, nil), func() { _ = reporter.Close() }, nil
}

func newStackdriverTraceExporter(cfg *config.TracingConfig) (trace.Exporter, func(), error) {
	if cfg.StackdriverProjectID == "" {
		return nil, nil, errors.New("Stackdriver project ID is required for Stackdriver exporter")
	}

	se, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID: cfg.StackdriverProjectID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Stackdriver exporter: %w", err)
	}

	return se, se.Flush, nil
}

// datadogAgent returns the Datadog agent address, falling back to the
// general agent endpoint
func datadogAgent(cfg *config.TracingConfig) (string, error) {
	if cfg.DatadogAgentAddress != "" {
		return cfg.DatadogAgentAddress, nil
	}
	if cfg.AgentEndpoint != "" {
		return cfg.AgentEndpoint, nil
	}
	return "", errors.New("Datadog agent address is required for Datadog exporter")
}

func datadogOptions(cfg *config.TracingConfig, agentAddr string) datadog.Options {
	options := datadog.Options{
		Service:   cfg.ServiceName,
		TraceAddr: agentAddr,
		StatsAddr: agentAddr,
		Tags:      []string{"env:prod"},
	}
	if cfg.DatadogAPIKey != "" {
		options.GlobalTags = map[string]interface{}{
			"api_key": cfg.DatadogAPIKey,
		}
	}
	return options
}

func newDatadogExporter(cfg *config.TracingConfig) (trace.Exporter, func(), error) {
	agentAddr, err := datadogAgent(cfg)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := datadog.NewExporter(datadogOptions(cfg, agentAddr))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Datadog exporter: %w", err)
	}

	return exporter, exporter.Stop, nil
}

func newXRayExporter(cfg *config.TracingConfig) (trace.Exporter, func(), error) {
	if cfg.XRayRegion == "" {
		return nil, nil, errors.New("AWS region is required for X-Ray exporter")
	}

	exporter, err := aws.NewExporter(
		aws.WithRegion(cfg.XRayRegion),
		aws.WithVersion("latest"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AWS X-Ray exporter: %w", err)
	}

	return exporter, exporter.Flush, nil
}

// initPrometheusExporter registers the Prometheus exporter and prepares a
// metrics server when a port is configured. The server is started by StartMetricsServer.
func (t *Telemetry) initPrometheusExporter(cfg *config.TracingConfig) error {
	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: strings.ReplaceAll(cfg.ServiceName, "-", "_"),
		OnError: func(err error) {
			t.logger.WithField("error", err.Error()).Error("Prometheus exporter error")
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	view.RegisterExporter(pe)

	if cfg.PrometheusPort <= 0 {
		t.logger.Debug("Prometheus metrics server not started (port not configured)")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", pe)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	t.metricsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.PrometheusPort),
		Handler: mux,
	}
	return nil
}

func (t *Telemetry) initStackdriverMetricsExporter(cfg *config.TracingConfig) error {
	if cfg.StackdriverProjectID == "" {
		return errors.New("Stackdriver project ID is required for Stackdriver metrics exporter")
	}

	se, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    cfg.StackdriverProjectID,
		MetricPrefix: cfg.ServiceName,
		OnError: func(err error) {
			t.logger.WithField("error", err.Error()).Error("Stackdriver metrics exporter error")
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create Stackdriver metrics exporter: %w", err)
	}

	view.RegisterExporter(se)
	t.flushers = append(t.flushers, se.Flush)
	return nil
}

func (t *Telemetry) initDatadogMetricsExporter(cfg *config.TracingConfig) error {
	agentAddr, err := datadogAgent(cfg)
	if err != nil {
		return err
	}

	options := datadogOptions(cfg, agentAddr)
	options.OnError = func(err error) {
		t.logger.WithField("error", err.Error()).Error("Datadog metrics exporter error")
	}

	exporter, err := datadog.NewExporter(options)
	if err != nil {
		return fmt.Errorf("failed to create Datadog metrics exporter: %w", err)
	}

	view.RegisterExporter(exporter)
	t.flushers = append(t.flushers, exporter.Stop)
	return nil
}

// codecov:ignore:end

// MetricsServer returns the Prometheus metrics server, or nil when none is configured
func (t *Telemetry) MetricsServer() *http.Server {
	return t.metricsServer
}

// StartMetricsServer serves the Prometheus endpoint in the background
func (t *Telemetry) StartMetricsServer() {
	if t.metricsServer == nil {
		return
	}

	go func() {
		t.logger.WithField("addr", t.metricsServer.Addr).Info("Starting Prometheus metrics server")
		if err := t.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.logger.WithField("error", err.Error()).Error("Prometheus metrics server failed")
		}
	}()
}

func (t *Telemetry) flush() {
	for _, flush := range t.flushers {
		flush()
	}
	t.flushers = nil
}

// Shutdown flushes the exporters and stops the metrics server
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.flush()

	if t.metricsServer == nil {
		return nil
	}
	if err := t.metricsServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	return nil
}

// GetHTTPOptions returns options for HTTP client tracing
func GetHTTPOptions() ochttp.Transport {
	return ochttp.Transport{
		FormatSpanName: func(req *http.Request) string {
			return fmt.Sprintf("%s %s", req.Method, req.URL.Path)
		},
	}
}

// RegisterHTTPServerViews registers views for HTTP server metrics
func RegisterHTTPServerViews() error {
	return view.Register(
		ochttp.ServerRequestCountView,
		ochttp.ServerRequestBytesView,
		ochttp.ServerResponseBytesView,
		ochttp.ServerLatencyView,
		ochttp.ServerRequestCountByMethod,
		ochttp.ServerResponseCountByStatusCode,
	)
}
