package services

import (
	"log"
	"sync"

	"gorm.io/gorm"

	"github.com/codyseavey/imgtools/internal/metrics"
	"github.com/codyseavey/imgtools/internal/models"
)

// Telemetry receives a named event for every successful export.
// Implementations must not block the caller.
type Telemetry interface {
	ExportCompleted(event models.ExportEvent)
}

// ExportTelemetry counts exports in Prometheus and records each one in the
// database asynchronously. Recording failures are logged and dropped.
type ExportTelemetry struct {
	db *gorm.DB
	wg sync.WaitGroup
}

// NewExportTelemetry creates the export event sink. db may be nil to only
// count events.
func NewExportTelemetry(db *gorm.DB) *ExportTelemetry {
	return &ExportTelemetry{db: db}
}

func (t *ExportTelemetry) ExportCompleted(event models.ExportEvent) {
	metrics.ExportsTotal.WithLabelValues(event.Event).Inc()
	metrics.ExportBytes.Observe(float64(event.Bytes))

	if t.db == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC recording export event %s: %v", event.Event, r)
				metrics.TelemetryErrorsTotal.Inc()
			}
		}()
		if err := t.db.Create(&event).Error; err != nil {
			log.Printf("Warning: failed to record export event %s: %v", event.Event, err)
			metrics.TelemetryErrorsTotal.Inc()
		}
	}()
}

// Wait blocks until every pending event write has finished. Used on shutdown.
func (t *ExportTelemetry) Wait() {
	t.wg.Wait()
}
