// Package metrics exposes ledger activity as Prometheus metrics. Sink is a
// types.EventSink that counts events and tracks custody, contributor and
// revision gauges.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

const namespace = "cofund"

// Sink updates Prometheus collectors from ledger events. Each Sink owns its
// registry.
type Sink struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	valueMoved   *prometheus.CounterVec
	custody      prometheus.Gauge
	contributors prometheus.Gauge
	revision     prometheus.Gauge
	refunds      prometheus.Gauge

	mu   sync.Mutex
	seen map[types.Identity]bool
}

var _ types.EventSink = (*Sink)(nil)

// NewSink returns a sink with its collectors registered on a fresh registry.
func NewSink() *Sink {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Sink{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Ledger events committed, by kind.",
		}, []string{"kind"}),
		valueMoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_moved_base_units_total",
			Help:      "Value moved by committed calls in base units, by event kind.",
		}, []string{"kind"}),
		custody: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "custody_balance_base_units",
			Help:      "Value held in custody by the ledger.",
		}),
		contributors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contributors",
			Help:      "Unique contributors recorded.",
		}),
		revision: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "revision",
			Help:      "Authoritative logic revision.",
		}),
		refunds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refunds_enabled",
			Help:      "Whether the refund path is open (1) or closed (0).",
		}),
		seen: make(map[types.Identity]bool),
	}
}

// Registry returns the registry the sink's collectors live in.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the sink's registry in the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Source is the ledger state the gauges mirror.
type Source interface {
	Status(ctx context.Context) (types.Status, error)
	Contributors(ctx context.Context) ([]types.Identity, error)
}

// Refresh sets the gauges from src. An uninitialized ledger leaves them as
// they are.
func (s *Sink) Refresh(ctx context.Context, src Source) error {
	st, err := src.Status(ctx)
	if errors.Is(err, types.ErrNotInitialized) {
		return nil
	}
	if err != nil {
		return err
	}
	ids, err := src.Contributors(ctx)
	if err != nil {
		return err
	}
	s.Sync(st, ids)
	return nil
}

// HandlerFor serves the registry after refreshing the gauges from src, so
// they follow writes made by other processes. Event counters only count
// events committed through this process.
func (s *Sink) HandlerFor(src Source) http.Handler {
	next := s.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Refresh(r.Context(), src); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sync sets the gauges from a status read, so a freshly started process
// reports the committed state before any new event arrives.
func (s *Sink) Sync(st types.Status, contributors []types.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = make(map[types.Identity]bool, len(contributors))
	for _, id := range contributors {
		s.seen[id] = true
	}
	s.contributors.Set(float64(st.ContributorCount))
	s.custody.Set(float64(st.Balance))
	s.revision.Set(float64(st.Revision))
	s.refunds.Set(boolValue(st.RefundsEnabled != nil && *st.RefundsEnabled))
}

// Emit updates the collectors for one committed event.
func (s *Sink) Emit(e types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events.WithLabelValues(e.Kind).Inc()
	s.revision.Set(float64(e.Revision))

	switch e.Kind {
	case types.EventContributed:
		s.valueMoved.WithLabelValues(e.Kind).Add(float64(e.Amount))
		s.custody.Add(float64(e.Amount))
		if !s.seen[e.Who] {
			s.seen[e.Who] = true
			s.contributors.Inc()
		}
	case types.EventWithdrawn, types.EventRefunded:
		s.valueMoved.WithLabelValues(e.Kind).Add(float64(e.Amount))
		s.custody.Sub(float64(e.Amount))
	case types.EventRefundsToggled:
		s.refunds.Set(boolValue(e.Enabled))
	case types.EventMigrated:
		if e.Logic == types.LogicRefundableV2 {
			s.refunds.Set(1)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
