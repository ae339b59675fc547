package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the users feature. All receivers are
// nil-safe so tests can run without a registry.
type Metrics struct {
	profilesCreated        prometheus.Counter
	registrationsCompleted prometheus.Counter
	profilesAnonymized     prometheus.Counter
	searches               prometheus.Counter
	searchCacheHits        prometheus.Counter
	migrationRecords       *prometheus.CounterVec
}

// New creates and registers the users feature metrics.
func New() *Metrics {
	return &Metrics{
		profilesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_api_profiles_created_total",
			Help: "Profiles created.",
		}),
		registrationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_api_registrations_completed_total",
			Help: "Registrations completed.",
		}),
		profilesAnonymized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_api_profiles_anonymized_total",
			Help: "Profiles anonymized by deletion.",
		}),
		searches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_api_searches_total",
			Help: "Directory searches executed.",
		}),
		searchCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_api_search_cache_hits_total",
			Help: "Directory searches served from cache.",
		}),
		migrationRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "users_api_migration_records_total",
			Help: "Category migration records by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncProfilesCreated() {
	if m != nil {
		m.profilesCreated.Inc()
	}
}

func (m *Metrics) IncRegistrationsCompleted() {
	if m != nil {
		m.registrationsCompleted.Inc()
	}
}

func (m *Metrics) IncProfilesAnonymized() {
	if m != nil {
		m.profilesAnonymized.Inc()
	}
}

func (m *Metrics) IncSearches() {
	if m != nil {
		m.searches.Inc()
	}
}

func (m *Metrics) IncSearchCacheHits() {
	if m != nil {
		m.searchCacheHits.Inc()
	}
}

func (m *Metrics) AddMigrationRecords(outcome string, n int) {
	if m != nil {
		m.migrationRecords.WithLabelValues(outcome).Add(float64(n))
	}
}
