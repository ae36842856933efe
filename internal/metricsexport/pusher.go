// Package metricsexport pushes the pipeline registry after each run. The worker is a
// short-lived batch process, so metrics are pushed rather than scraped.
package metricsexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/opinionetl/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	ExporterPrometheusRemoteWrite = "prometheus_remote_write"
	ExporterPrometheusPushgateway = "prometheus_pushgateway"
	ExporterOTLP                  = "otlp"

	defaultPushTimeout = 5 * time.Second
)

var ErrEndpointRequired = errors.New("metrics_endpoint_required")

// Pusher sends one snapshot of a registry.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher builds a pusher from config. A missing or invalid exporter is logged and
// yields nil so a metrics outage never blocks a run.
func NewPusher(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("metricsexport")

	exporter := strings.ToLower(strings.TrimSpace(cfg.Metrics.Exporter))
	endpoint := strings.TrimSpace(cfg.Metrics.Endpoint)
	authToken := strings.TrimSpace(cfg.Metrics.AuthToken)

	if exporter == "" {
		return nil
	}
	if endpoint == "" {
		logger.Warn("metrics push disabled", zap.String("exporter", exporter), zap.Error(ErrEndpointRequired))
		return nil
	}

	switch exporter {
	case ExporterPrometheusRemoteWrite:
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			logger.Warn("metrics push disabled", zap.Error(fmt.Errorf("invalid metrics endpoint: %w", err)))
			return nil
		}
		return NewRemoteWritePusher(endpoint, authToken)
	case ExporterPrometheusPushgateway:
		return NewPushgatewayPusher(endpoint, cfg.AppName, map[string]string{
			"environment": strings.TrimSpace(cfg.Environment),
		})
	case ExporterOTLP:
		pusher, err := NewOTLPPusher(endpoint, authToken, Resource{
			ServiceName:    cfg.AppName,
			ServiceVersion: cfg.AppVersion,
			Environment:    cfg.Environment,
		})
		if err != nil {
			logger.Warn("metrics push disabled", zap.Error(err))
			return nil
		}
		if lc != nil {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return pusher.Close()
				},
			})
		}
		return pusher
	default:
		logger.Warn("metrics push disabled", zap.String("exporter", exporter))
		return nil
	}
}

// RemoteWritePusher sends metrics to a Prometheus remote_write endpoint.
type RemoteWritePusher struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	now        func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint:   endpoint,
		authToken:  strings.TrimSpace(authToken),
		httpClient: &http.Client{Timeout: defaultPushTimeout},
		now:        time.Now,
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}

	families, err := registry.Gather()
	if err != nil {
		return err
	}
	series := buildRemoteWriteSeries(families, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	req := &prompb.WriteRequest{Timeseries: series}
	payload, err := proto.Marshal(protoadapt.MessageV2Of(req))
	if err != nil {
		return err
	}

	compressed := snappy.Encode(nil, payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(compressed))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("remote write returned %s", resp.Status)
	}
	return nil
}

// PushgatewayPusher replaces the job's group on a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      strings.TrimSpace(job),
		grouping: grouping,
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	if strings.TrimSpace(p.endpoint) == "" {
		return ErrEndpointRequired
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(registry)
	keys := make([]string, 0, len(p.grouping))
	for key := range p.grouping {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		name, value := strings.TrimSpace(key), strings.TrimSpace(p.grouping[key])
		if name == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(name, value)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return pusher.PushContext(ctx)
}

// buildRemoteWriteSeries flattens counters and gauges, and histograms into their
// _count and _sum series.
func buildRemoteWriteSeries(families []*dto.MetricFamily, timestampMs int64) []prompb.TimeSeries {
	series := make([]prompb.TimeSeries, 0, len(families))
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch family.GetType() {
			case dto.MetricType_COUNTER, dto.MetricType_GAUGE:
				value := extractMetricValue(family.GetType(), metric)
				if value == nil {
					continue
				}
				series = append(series, newSeries(family.GetName(), metric.GetLabel(), *value, timestampMs))
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				if h == nil {
					continue
				}
				series = append(series,
					newSeries(family.GetName()+"_count", metric.GetLabel(), float64(h.GetSampleCount()), timestampMs),
					newSeries(family.GetName()+"_sum", metric.GetLabel(), h.GetSampleSum(), timestampMs),
				)
			}
		}
	}
	return series
}

func newSeries(name string, pairs []*dto.LabelPair, value float64, timestampMs int64) prompb.TimeSeries {
	labels := make([]prompb.Label, 0, len(pairs)+1)
	labels = append(labels, prompb.Label{Name: "__name__", Value: name})
	for _, label := range pairs {
		labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
	}
	sort.Slice(labels, func(i, j int) bool {
		return labels[i].Name < labels[j].Name
	})
	return prompb.TimeSeries{
		Labels: labels,
		Samples: []prompb.Sample{{
			Value:     value,
			Timestamp: timestampMs,
		}},
	}
}

func extractMetricValue(metricType dto.MetricType, metric *dto.Metric) *float64 {
	if metric == nil {
		return nil
	}
	switch metricType {
	case dto.MetricType_COUNTER:
		if metric.GetCounter() == nil {
			return nil
		}
		value := metric.GetCounter().GetValue()
		return &value
	case dto.MetricType_GAUGE:
		if metric.GetGauge() == nil {
			return nil
		}
		value := metric.GetGauge().GetValue()
		return &value
	default:
		return nil
	}
}
