package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/scheduler"
	"github.com/pushchain/validator-trust/trustClient/trust"
)

const namespace = "ptrust"

const outcomeSuccess = "success"

// TrustMetrics exports scheduler and trust state to Prometheus. It plugs into
// the scheduler as Observer and Listener and into the chooser as Listener.
type TrustMetrics struct {
	fetchAttempts       *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	consecutiveFailures *prometheus.GaugeVec
	sourceValidators    *prometheus.GaugeVec
	validatorsAdded     *prometheus.CounterVec
	validatorsRemoved   *prometheus.CounterVec
	knownValidators     prometheus.Gauge
	chosenValidators    prometheus.Gauge
	chosenSufficient    prometheus.Gauge
}

var (
	_ scheduler.Observer = (*TrustMetrics)(nil)
	_ scheduler.Listener = (*TrustMetrics)(nil)
	_ trust.Listener     = (*TrustMetrics)(nil)
)

func NewTrustMetrics(registerer prometheus.Registerer) *TrustMetrics {
	m := TrustMetrics{
		fetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Number of validator list fetches by source and outcome",
			},
			[]string{"source_id", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of validator list fetches",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"source_id"},
		),
		consecutiveFailures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_consecutive_failures",
				Help:      "Consecutive failed fetches of a source",
			},
			[]string{"source_id"},
		),
		sourceValidators: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_validators",
				Help:      "Validators reported by the last successful fetch of a source",
			},
			[]string{"source_id"},
		),
		validatorsAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validators_added_total",
				Help:      "Validators added to a source's list by its fetches",
			},
			[]string{"source_id"},
		),
		validatorsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validators_removed_total",
				Help:      "Validators removed from a source's list by its fetches",
			},
			[]string{"source_id"},
		),
		knownValidators: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "known_validators",
				Help:      "Validators known across all sources",
			},
		),
		chosenValidators: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chosen_validators",
				Help:      "Validators chosen by the trust filter",
			},
		),
		chosenSufficient: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chosen_sufficient",
				Help:      "1 when enough validators are chosen, 0 otherwise",
			},
		),
	}

	registerer.MustRegister(m.fetchAttempts)
	registerer.MustRegister(m.fetchDuration)
	registerer.MustRegister(m.consecutiveFailures)
	registerer.MustRegister(m.sourceValidators)
	registerer.MustRegister(m.validatorsAdded)
	registerer.MustRegister(m.validatorsRemoved)
	registerer.MustRegister(m.knownValidators)
	registerer.MustRegister(m.chosenValidators)
	registerer.MustRegister(m.chosenSufficient)

	return &m
}

func (m *TrustMetrics) OnFetchAttempt(a scheduler.Attempt) {
	outcome := outcomeSuccess
	if a.Err != nil {
		outcome = strings.ToLower(string(errors.Code(a.Err)))
	}
	m.fetchAttempts.WithLabelValues(a.SourceID, outcome).Inc()
	m.fetchDuration.WithLabelValues(a.SourceID).Observe(a.Duration.Seconds())
	m.consecutiveFailures.WithLabelValues(a.SourceID).Set(float64(a.Schedule.ConsecutiveFailures))
	if a.Err == nil {
		m.sourceValidators.WithLabelValues(a.SourceID).Set(float64(a.Count))
	}
}

func (m *TrustMetrics) OnFetchDelta(d scheduler.FetchDelta) {
	m.validatorsAdded.WithLabelValues(d.SourceID).Add(float64(len(d.Source.Added)))
	m.validatorsRemoved.WithLabelValues(d.SourceID).Add(float64(len(d.Source.Removed)))
	m.knownValidators.Set(float64(len(d.Known)))
}

func (m *TrustMetrics) OnChosen(c trust.ChosenSet) {
	m.chosenValidators.Set(float64(len(c.Validators)))
	if c.Sufficient {
		m.chosenSufficient.Set(1)
	} else {
		m.chosenSufficient.Set(0)
	}
}

// ForgetSource drops the per-source series of an unregistered source.
func (m *TrustMetrics) ForgetSource(sourceID string) {
	labels := prometheus.Labels{"source_id": sourceID}
	m.fetchAttempts.DeletePartialMatch(labels)
	m.fetchDuration.DeletePartialMatch(labels)
	m.consecutiveFailures.DeletePartialMatch(labels)
	m.sourceValidators.DeletePartialMatch(labels)
	m.validatorsAdded.DeletePartialMatch(labels)
	m.validatorsRemoved.DeletePartialMatch(labels)
}
