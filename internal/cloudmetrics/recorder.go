package cloudmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/agrishield/claims/internal/claim/domain"
)

// Recorder maintains the fleet-level gauges pushed to the central endpoint:
// claim counts per status plus node identity. Kept separate from the local
// /metrics registry so only this curated set leaves the node.
type Recorder struct {
	registry *prometheus.Registry

	claimsTotal *prometheus.GaugeVec
	memoryBytes prometheus.Gauge
}

func NewRecorder(nodeID, version string) *Recorder {
	registry := prometheus.NewRegistry()

	constLabels := prometheus.Labels{
		"node_id": nodeID,
		"version": version,
	}

	r := &Recorder{
		registry: registry,
		claimsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "claimsd_claims_total",
			Help:        "Claims per lifecycle status on this node.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "claimsd_memory_bytes",
			Help:        "Memory obtained from the OS by this node.",
			ConstLabels: constLabels,
		}),
	}
	registry.MustRegister(r.claimsTotal, r.memoryBytes)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) SetMemoryUsage(bytes uint64) {
	r.memoryBytes.Set(float64(bytes))
}

// RefreshClaimCounts reloads the per-status claim gauges from the database.
func (r *Recorder) RefreshClaimCounts(ctx context.Context, db *gorm.DB) error {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	r.claimsTotal.Reset()
	for _, row := range rows {
		r.claimsTotal.WithLabelValues(row.Status).Set(float64(row.Count))
	}
	return nil
}
