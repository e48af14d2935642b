//revive:disable:var-naming
//revive:disable:exported
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes application metrics for the proposer and rsm layers.
// Its own method set backs two thin typed views, ProposerMetrics and
// RsmMetrics, which satisfy internal/proposer.Metrics and internal/rsm.Metrics
// respectively without either package importing this one. A single
// SetIsLeader name is not enough here since the two interfaces disagree on
// arity (history+self vs. rsm name), hence the split views below.
type Prometheus struct {
	proposerTermEstablishStartedTotal *prometheus.CounterVec
	proposerTermEstablishWonTotal     *prometheus.CounterVec
	proposerTermEstablishLostTotal    *prometheus.CounterVec
	proposerAppendRPCDuration         *prometheus.HistogramVec
	proposerAppendRPCErrorTotal       *prometheus.CounterVec
	proposerCommittedSeqno            *prometheus.GaugeVec
	proposerAppendedSeqno             *prometheus.GaugeVec
	proposerBranchResolutionStarted   *prometheus.CounterVec
	proposerBranchResolutionCompleted *prometheus.CounterVec
	proposerConfigChangeRejectedTotal *prometheus.CounterVec
	proposerIsLeader                  *prometheus.GaugeVec

	rsmIsLeader            *prometheus.GaugeVec
	rsmApplyBatchSize      *prometheus.HistogramVec
	rsmAppliedSeqno        *prometheus.GaugeVec
	rsmSyncRevisionTimeout *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		proposerTermEstablishStartedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "term_establish_started_total",
				Help:      "Number of times a node started establishing a term as prospective leader.",
			},
			[]string{"history_id", "self"},
		),
		proposerTermEstablishWonTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "term_establish_won_total",
				Help:      "Number of terms a node successfully established a majority for.",
			},
			[]string{"history_id", "self"},
		),
		proposerTermEstablishLostTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "term_establish_lost_total",
				Help:      "Number of term establishment attempts lost or abandoned, by reason.",
			},
			[]string{"history_id", "self", "reason"},
		),
		proposerAppendRPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "append_rpc_duration_seconds",
				Help:      "Duration of outbound append RPC calls to a peer's Agent.",
				Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2},
			},
			[]string{"history_id", "self", "peer"},
		),
		proposerAppendRPCErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "append_rpc_error_total",
				Help:      "Outbound append RPC errors by kind.",
			},
			[]string{"history_id", "self", "peer", "kind"},
		),
		proposerCommittedSeqno: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "committed_seqno",
				Help:      "Highest seqno a node believes is committed for a history.",
			},
			[]string{"history_id", "self"},
		),
		proposerAppendedSeqno: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "appended_seqno",
				Help:      "Highest seqno a node has appended locally for a history.",
			},
			[]string{"history_id", "self"},
		),
		proposerBranchResolutionStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "branch_resolution_started_total",
				Help:      "Number of times a node started resolving a history branch on term establishment.",
			},
			[]string{"history_id", "self"},
		),
		proposerBranchResolutionCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "branch_resolution_completed_total",
				Help:      "Number of history branch resolutions completed.",
			},
			[]string{"history_id", "self"},
		),
		proposerConfigChangeRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "config_change_rejected_total",
				Help:      "CAS-config change requests rejected, by reason.",
			},
			[]string{"history_id", "self", "reason"},
		),
		proposerIsLeader: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "proposer",
				Name:      "is_leader",
				Help:      "1 if node currently holds an established term for a history, otherwise 0.",
			},
			[]string{"history_id", "self"},
		),
		rsmIsLeader: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "rsm",
				Name:      "is_leader",
				Help:      "1 if the runtime for a named RSM currently believes it is on the leader term, otherwise 0.",
			},
			[]string{"rsm"},
		),
		rsmApplyBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consensuslab",
				Subsystem: "rsm",
				Name:      "apply_batch_size",
				Help:      "Number of log entries applied per apply-loop batch.",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512},
			},
			[]string{"rsm"},
		),
		rsmAppliedSeqno: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consensuslab",
				Subsystem: "rsm",
				Name:      "applied_seqno",
				Help:      "Highest seqno applied to a named RSM's mod state.",
			},
			[]string{"rsm"},
		),
		rsmSyncRevisionTimeout: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consensuslab",
				Subsystem: "rsm",
				Name:      "sync_revision_timeout_total",
				Help:      "Number of syncRevision waiters that timed out before the requested revision was applied.",
			},
			[]string{"rsm"},
		),
	}

	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Prometheus) register(reg prometheus.Registerer) error {
	if err := registerOrReuseCounterVec(reg, &m.proposerTermEstablishStartedTotal); err != nil {
		return fmt.Errorf("register proposer term establish started counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.proposerTermEstablishWonTotal); err != nil {
		return fmt.Errorf("register proposer term establish won counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.proposerTermEstablishLostTotal); err != nil {
		return fmt.Errorf("register proposer term establish lost counter: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.proposerAppendRPCDuration); err != nil {
		return fmt.Errorf("register proposer append rpc duration histogram: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.proposerAppendRPCErrorTotal); err != nil {
		return fmt.Errorf("register proposer append rpc error counter: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.proposerCommittedSeqno); err != nil {
		return fmt.Errorf("register proposer committed seqno gauge: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.proposerAppendedSeqno); err != nil {
		return fmt.Errorf("register proposer appended seqno gauge: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.proposerBranchResolutionStarted); err != nil {
		return fmt.Errorf("register proposer branch resolution started counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.proposerBranchResolutionCompleted); err != nil {
		return fmt.Errorf("register proposer branch resolution completed counter: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.proposerConfigChangeRejectedTotal); err != nil {
		return fmt.Errorf("register proposer config change rejected counter: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.proposerIsLeader); err != nil {
		return fmt.Errorf("register proposer is_leader gauge: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.rsmIsLeader); err != nil {
		return fmt.Errorf("register rsm is_leader gauge: %w", err)
	}
	if err := registerOrReuseHistogramVec(reg, &m.rsmApplyBatchSize); err != nil {
		return fmt.Errorf("register rsm apply batch size histogram: %w", err)
	}
	if err := registerOrReuseGaugeVec(reg, &m.rsmAppliedSeqno); err != nil {
		return fmt.Errorf("register rsm applied seqno gauge: %w", err)
	}
	if err := registerOrReuseCounterVec(reg, &m.rsmSyncRevisionTimeout); err != nil {
		return fmt.Errorf("register rsm sync revision timeout counter: %w", err)
	}
	return nil
}

func registerOrReuseHistogramVec(reg prometheus.Registerer, c **prometheus.HistogramVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseCounterVec(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseGaugeVec(reg prometheus.Registerer, c **prometheus.GaugeVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

// IncTermEstablishStarted is part of ProposerMetrics.
func (m *Prometheus) IncTermEstablishStarted(historyID, self string) {
	m.proposerTermEstablishStartedTotal.WithLabelValues(historyID, self).Inc()
}

// IncTermEstablishWon is part of ProposerMetrics.
func (m *Prometheus) IncTermEstablishWon(historyID, self string) {
	m.proposerTermEstablishWonTotal.WithLabelValues(historyID, self).Inc()
}

// IncTermEstablishLost is part of ProposerMetrics.
func (m *Prometheus) IncTermEstablishLost(historyID, self, reason string) {
	m.proposerTermEstablishLostTotal.WithLabelValues(historyID, self, reason).Inc()
}

// ObserveAppendRPCDuration is part of ProposerMetrics.
func (m *Prometheus) ObserveAppendRPCDuration(historyID, self, peer string, d time.Duration) {
	m.proposerAppendRPCDuration.WithLabelValues(historyID, self, peer).Observe(d.Seconds())
}

// IncAppendRPCError is part of ProposerMetrics.
func (m *Prometheus) IncAppendRPCError(historyID, self, peer, kind string) {
	m.proposerAppendRPCErrorTotal.WithLabelValues(historyID, self, peer, kind).Inc()
}

// SetCommittedSeqno is part of ProposerMetrics.
func (m *Prometheus) SetCommittedSeqno(historyID, self string, seqno int64) {
	m.proposerCommittedSeqno.WithLabelValues(historyID, self).Set(float64(seqno))
}

// SetAppendedSeqno is part of ProposerMetrics.
func (m *Prometheus) SetAppendedSeqno(historyID, self string, seqno int64) {
	m.proposerAppendedSeqno.WithLabelValues(historyID, self).Set(float64(seqno))
}

// IncBranchResolutionStarted is part of ProposerMetrics.
func (m *Prometheus) IncBranchResolutionStarted(historyID, self string) {
	m.proposerBranchResolutionStarted.WithLabelValues(historyID, self).Inc()
}

// IncBranchResolutionCompleted is part of ProposerMetrics.
func (m *Prometheus) IncBranchResolutionCompleted(historyID, self string) {
	m.proposerBranchResolutionCompleted.WithLabelValues(historyID, self).Inc()
}

// IncConfigChangeRejected is part of ProposerMetrics.
func (m *Prometheus) IncConfigChangeRejected(historyID, self, reason string) {
	m.proposerConfigChangeRejectedTotal.WithLabelValues(historyID, self, reason).Inc()
}

// ObserveApplyBatch is part of RsmMetrics.
func (m *Prometheus) ObserveApplyBatch(name string, entries int) {
	if entries < 0 {
		entries = 0
	}
	m.rsmApplyBatchSize.WithLabelValues(name).Observe(float64(entries))
}

// SetAppliedSeqno is part of RsmMetrics.
func (m *Prometheus) SetAppliedSeqno(name string, seqno int64) {
	m.rsmAppliedSeqno.WithLabelValues(name).Set(float64(seqno))
}

// IncSyncRevisionTimeout is part of RsmMetrics.
func (m *Prometheus) IncSyncRevisionTimeout(name string) {
	m.rsmSyncRevisionTimeout.WithLabelValues(name).Inc()
}

// ProposerMetrics adapts Prometheus to internal/proposer.Metrics. The
// interface's SetIsLeader takes (historyID, self, leader); RsmMetrics below
// needs a different arity for the same gauge family, so each view owns its
// own SetIsLeader instead of putting a single ambiguous one on Prometheus.
type ProposerMetrics struct{ *Prometheus }

// SetIsLeader implements proposer.Metrics.
func (v ProposerMetrics) SetIsLeader(historyID, self string, leader bool) {
	v.proposerIsLeader.WithLabelValues(historyID, self).Set(boolFloat(leader))
}

// RsmMetrics adapts Prometheus to internal/rsm.Metrics.
type RsmMetrics struct{ *Prometheus }

// SetIsLeader implements rsm.Metrics.
func (v RsmMetrics) SetIsLeader(name string, isLeader bool) {
	v.rsmIsLeader.WithLabelValues(name).Set(boolFloat(isLeader))
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
