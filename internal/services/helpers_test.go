package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/codyseavey/imgtools/internal/database"
	"github.com/codyseavey/imgtools/internal/models"
)

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

const svgFixture = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">` +
	`<rect width="100" height="50" fill="#ff0000"/></svg>`

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func mustLookup(t *testing.T, name string) ToolSpec {
	t.Helper()
	spec, err := LookupTool(name)
	if err != nil {
		t.Fatalf("LookupTool(%s) failed: %v", name, err)
	}
	return spec
}

// recordingTelemetry keeps every event it receives.
type recordingTelemetry struct {
	mu     sync.Mutex
	events []models.ExportEvent
}

func (r *recordingTelemetry) ExportCompleted(event models.ExportEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingTelemetry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
