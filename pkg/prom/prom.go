package prom

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	xhttp "github.com/nimasrn/campaign-gateway/pkg/http"
	"github.com/nimasrn/campaign-gateway/pkg/logger"
)

const (
	SystemDispatch = "dispatch"
	SystemWebhook  = "webhook"
)

const (
	MetricEmailsSent           = "emails_sent_total"
	MetricEmailsFailed         = "emails_failed_total"
	MetricCampaignSendDuration = "campaign_send_duration_seconds"
	MetricWebhookEvents        = "events_total"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
)

var createMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers the project's metric set. host and env become constant
// labels on every series.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemDispatch, MetricEmailsSent, []string{"provider"}))
	hasError(createCounterVec(SystemDispatch, MetricEmailsFailed, []string{"reason"}))
	hasError(createHistogramVec(SystemDispatch, MetricCampaignSendDuration, []string{"status"}))
	hasError(createCounterVec(SystemWebhook, MetricWebhookEvents, []string{"event_type"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labels ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labels)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labels)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

// AddEmailSent increments the sent counter for a provider.
func AddEmailSent(provider string) {
	if !MetricSystemEnabled {
		return
	}
	if c, ok := MetricCollectionCounterVec[SystemDispatch+MetricEmailsSent]; ok {
		c.WithLabelValues(provider).Inc()
	}
}

// AddEmailFailed increments the failed counter for a failure reason.
func AddEmailFailed(reason string) {
	if !MetricSystemEnabled {
		return
	}
	if c, ok := MetricCollectionCounterVec[SystemDispatch+MetricEmailsFailed]; ok {
		c.WithLabelValues(reason).Inc()
	}
}

// ObserveCampaignSendDuration records the wall time of a full campaign send.
func ObserveCampaignSendDuration(seconds float64, status string) {
	if !MetricSystemEnabled {
		return
	}
	if h, ok := MetricCollectionHistogramVec[SystemDispatch+MetricCampaignSendDuration]; ok {
		h.WithLabelValues(status).Observe(seconds)
	}
}

// AddWebhookEvent counts an ingested provider event by type.
func AddWebhookEvent(eventType string) {
	if !MetricSystemEnabled {
		return
	}
	if c, ok := MetricCollectionCounterVec[SystemWebhook+MetricWebhookEvents]; ok {
		c.WithLabelValues(eventType).Inc()
	}
}

func createCounter(subsystem, name string) error {
	createMetricLock.Lock()
	defer createMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	createMetricLock.Lock()
	defer createMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	createMetricLock.Lock()
	defer createMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	createMetricLock.Lock()
	defer createMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}
