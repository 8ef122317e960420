package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsService interface {
	// HTTP metrics
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)

	// Settlement metrics
	RecordSettlement(transactionType, status, source string)
	IncrementSettlementErrors(source, errorType string)

	// Webhook metrics
	RecordWebhookDelivery(result string)
	IncrementSignatureRejections()

	// Reconciliation metrics
	RecordPollCycle(poll string, items int, duration time.Duration)
	IncrementPollErrors(poll, errorType string)
	// IncrementStatusConflicts counts polls that observed a terminal local
	// state disagreeing with the gateway. The series exists for alerting.
	IncrementStatusConflicts(poll string)

	// Gateway metrics
	RecordGatewayCall(operation string, success bool, duration time.Duration)

	// Commission metrics
	RecordCommission(outcome string, amount float64)
}

type prometheusMetrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	settlementsTotal       *prometheus.CounterVec
	settlementErrorsTotal  *prometheus.CounterVec
	webhookDeliveriesTotal *prometheus.CounterVec
	signatureRejections    prometheus.Counter

	pollCyclesTotal      *prometheus.CounterVec
	pollItemsProcessed   *prometheus.CounterVec
	pollDuration         *prometheus.HistogramVec
	pollErrorsTotal      *prometheus.CounterVec
	statusConflictsTotal *prometheus.CounterVec

	gatewayCallsTotal   *prometheus.CounterVec
	gatewayCallDuration *prometheus.HistogramVec

	commissionsTotal  *prometheus.CounterVec
	commissionVolume  *prometheus.CounterVec
}

func NewMetricsService() MetricsService {
	return &prometheusMetrics{
		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_http_requests_total",
			Help: "Total HTTP requests by method, endpoint and status code",
		}, []string{"method", "endpoint", "status_code"}),
		httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		settlementsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_settlements_total",
			Help: "Settlements applied, by transaction type, final status and source",
		}, []string{"type", "status", "source"}),
		settlementErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_errors_total",
			Help: "Settlement failures by source and error type",
		}, []string{"source", "error_type"}),
		webhookDeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_webhook_deliveries_total",
			Help: "Inbound webhook deliveries by result",
		}, []string{"result"}),
		signatureRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settlement_webhook_signature_rejections_total",
			Help: "Webhook deliveries rejected for a bad signature",
		}),

		pollCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_poll_cycles_total",
			Help: "Reconciliation poll cycles by poll name",
		}, []string{"poll"}),
		pollItemsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_poll_items_total",
			Help: "Transactions examined by the reconciliation polls",
		}, []string{"poll"}),
		pollDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_poll_duration_seconds",
			Help:    "Reconciliation poll cycle duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"poll"}),
		pollErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_poll_errors_total",
			Help: "Per-item reconciliation failures by poll and error type",
		}, []string{"poll", "error_type"}),
		statusConflictsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_status_conflicts_total",
			Help: "Polls that saw the gateway disagree with a terminal local status",
		}, []string{"poll"}),

		gatewayCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_gateway_calls_total",
			Help: "Outbound gateway calls by operation and outcome",
		}, []string{"operation", "success"}),
		gatewayCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_gateway_call_duration_seconds",
			Help:    "Outbound gateway call duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		commissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_commissions_total",
			Help: "Commissions recorded by bet outcome",
		}, []string{"outcome"}),
		commissionVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_commission_volume_total",
			Help: "Absolute commission volume by bet outcome",
		}, []string{"outcome"}),
	}
}

func (m *prometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, httpStatusLabel(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordSettlement(transactionType, status, source string) {
	m.settlementsTotal.WithLabelValues(transactionType, status, source).Inc()
}

func (m *prometheusMetrics) IncrementSettlementErrors(source, errorType string) {
	m.settlementErrorsTotal.WithLabelValues(source, errorType).Inc()
}

func (m *prometheusMetrics) RecordWebhookDelivery(result string) {
	m.webhookDeliveriesTotal.WithLabelValues(result).Inc()
}

func (m *prometheusMetrics) IncrementSignatureRejections() {
	m.signatureRejections.Inc()
}

func (m *prometheusMetrics) RecordPollCycle(poll string, items int, duration time.Duration) {
	m.pollCyclesTotal.WithLabelValues(poll).Inc()
	m.pollItemsProcessed.WithLabelValues(poll).Add(float64(items))
	m.pollDuration.WithLabelValues(poll).Observe(duration.Seconds())
}

func (m *prometheusMetrics) IncrementPollErrors(poll, errorType string) {
	m.pollErrorsTotal.WithLabelValues(poll, errorType).Inc()
}

func (m *prometheusMetrics) IncrementStatusConflicts(poll string) {
	m.statusConflictsTotal.WithLabelValues(poll).Inc()
}

func (m *prometheusMetrics) RecordGatewayCall(operation string, success bool, duration time.Duration) {
	successLabel := "false"
	if success {
		successLabel = "true"
	}
	m.gatewayCallsTotal.WithLabelValues(operation, successLabel).Inc()
	m.gatewayCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordCommission(outcome string, amount float64) {
	m.commissionsTotal.WithLabelValues(outcome).Inc()
	if amount < 0 {
		amount = -amount
	}
	m.commissionVolume.WithLabelValues(outcome).Add(amount)
}

// NewNoopMetrics returns a MetricsService that records nothing. Tests use it
// to avoid duplicate registration on the default prometheus registry.
func NewNoopMetrics() MetricsService {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
func (noopMetrics) RecordSettlement(string, string, string)              {}
func (noopMetrics) IncrementSettlementErrors(string, string)             {}
func (noopMetrics) RecordWebhookDelivery(string)                         {}
func (noopMetrics) IncrementSignatureRejections()                        {}
func (noopMetrics) RecordPollCycle(string, int, time.Duration)           {}
func (noopMetrics) IncrementPollErrors(string, string)                   {}
func (noopMetrics) IncrementStatusConflicts(string)                      {}
func (noopMetrics) RecordGatewayCall(string, bool, time.Duration)        {}
func (noopMetrics) RecordCommission(string, float64)                     {}

func httpStatusLabel(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
