package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/imgtools/internal/database"
	"github.com/codyseavey/imgtools/internal/models"
	"github.com/codyseavey/imgtools/internal/services"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">` +
	`<rect width="100" height="50" fill="#00ff00"/></svg>`

type testServer struct {
	router     *gin.Engine
	exportsDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	exportsDir := t.TempDir()
	handler := NewToolHandler(
		services.NewSessionStore(16, time.Minute),
		services.NewPreferenceService(db),
		services.NewExportTelemetry(nil),
		services.NewExportStorageServiceAt(exportsDir),
		0,
	)

	router := gin.New()
	router.GET("/api/tools", handler.ListTools)
	router.GET("/api/tools/:tool/preferences", handler.GetPreferences)
	router.POST("/api/tools/:tool/sessions", handler.CreateSession)
	router.GET("/api/tools/:tool/sessions/:id", handler.GetSession)
	router.PUT("/api/tools/:tool/sessions/:id/params", handler.UpdateParams)
	router.GET("/api/tools/:tool/sessions/:id/preview", handler.Preview)
	router.POST("/api/tools/:tool/sessions/:id/export", handler.Export)
	router.DELETE("/api/tools/:tool/sessions/:id", handler.CancelSession)

	return &testServer{router: router, exportsDir: exportsDir}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, tool, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create form part: %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tools/"+tool+"/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func (s *testServer) createSession(t *testing.T, tool, filename, contentType string, data []byte) models.SessionResponse {
	t.Helper()
	w := s.upload(t, tool, filename, contentType, data)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	return resp
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestListTools(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Tools []models.ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(resp.Tools))
	}
	if resp.Tools[2].Tool != "scale" || len(resp.Tools[2].AcceptedTypes) != 1 {
		t.Errorf("expected scale tool to accept only SVG, got %+v", resp.Tools[2])
	}
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)
	resp := s.createSession(t, "rounded", "photo.png", "image/png", pngBytes(t, 40, 20))

	if resp.ID == "" {
		t.Error("expected a session id")
	}
	if resp.Asset == nil || resp.Asset.Width != 40 || resp.Asset.Height != 20 {
		t.Fatalf("unexpected asset %+v", resp.Asset)
	}
	if resp.Params.Radius != 2 || resp.Params.Background != "transparent" {
		t.Errorf("expected default params, got %+v", resp.Params)
	}
	if resp.Output == nil || resp.Output.Filename != "photo.png" {
		t.Errorf("unexpected output %+v", resp.Output)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name        string
		tool        string
		filename    string
		contentType string
		data        []byte
		wantStatus  int
	}{
		{"raster on scale tool", "scale", "a.png", "image/png", pngBytes(t, 4, 4), http.StatusUnsupportedMediaType},
		{"unsupported type", "rounded", "a.txt", "text/plain", []byte("hello"), http.StatusUnsupportedMediaType},
		{"corrupt raster", "rounded", "a.png", "image/png", []byte("not a png"), http.StatusUnprocessableEntity},
		{"malformed vector", "scale", "a.svg", "image/svg+xml", []byte("<svg><g></svg>"), http.StatusUnprocessableEntity},
		{"empty file", "square", "a.png", "image/png", nil, http.StatusBadRequest},
		{"unknown tool", "blur", "a.png", "image/png", pngBytes(t, 4, 4), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, tt.tool, tt.filename, tt.contentType, tt.data)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateSessionMissingFile(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/tools/rounded/sessions", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	if w := s.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetSession(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "square", "a.png", "image/png", pngBytes(t, 10, 20))

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/tools/square/sessions/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	// Sessions are scoped to their tool
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/tools/rounded/sessions/"+created.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for another tool, got %d", w.Code)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/tools/square/sessions/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown id, got %d", w.Code)
	}
}

func TestUpdateParams(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "rounded", "a.png", "image/png", pngBytes(t, 40, 40))
	path := "/api/tools/rounded/sessions/" + created.ID + "/params"

	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"radius": 16, "background": "black"}`))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if resp.Params.Radius != 16 || resp.Params.Background != "black" {
		t.Errorf("expected radius 16 on black, got %+v", resp.Params)
	}

	// New values become the tool defaults
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/tools/rounded/preferences", nil))
	var prefs models.ToolPreferences
	if err := json.Unmarshal(w.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("failed to decode preferences: %v", err)
	}
	if prefs.Radius != 16 || prefs.Background != "black" {
		t.Errorf("expected stored radius 16 on black, got %+v", prefs)
	}

	req = httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"radius": -1}`))
	req.Header.Set("Content-Type", "application/json")
	if w := s.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for a negative radius, got %d", w.Code)
	}
}

func TestUpdateParamsScaleRejectsZero(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "scale", "logo.svg", "image/svg+xml", []byte(testSVG))

	req := httptest.NewRequest(http.MethodPut, "/api/tools/scale/sessions/"+created.ID+"/params", strings.NewReader(`{"scale": 0}`))
	req.Header.Set("Content-Type", "application/json")
	if w := s.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "rounded", "wide.png", "image/png", pngBytes(t, 800, 400))

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/tools/rounded/sessions/"+created.ID+"/preview?max_width=500", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}
	if cfg.Width != 500 || cfg.Height != 250 {
		t.Errorf("expected 500x250 preview, got %dx%d", cfg.Width, cfg.Height)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/tools/rounded/sessions/"+created.ID+"/preview?max_width=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for a bad max_width, got %d", w.Code)
	}
}

func TestExportDownload(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "square", "portrait.png", "image/png", pngBytes(t, 150, 300))

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/tools/square/sessions/"+created.ID+"/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "portrait-squared.png") {
		t.Errorf("expected portrait-squared.png in Content-Disposition, got %q", cd)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("export is not a PNG: %v", err)
	}
	if cfg.Width != 300 || cfg.Height != 300 {
		t.Errorf("expected 300x300, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestExportStore(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "scale", "logo.svg", "image/svg+xml", []byte(testSVG))

	req := httptest.NewRequest(http.MethodPut, "/api/tools/scale/sessions/"+created.ID+"/params", strings.NewReader(`{"scale": 4}`))
	req.Header.Set("Content-Type", "application/json")
	if w := s.do(req); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/tools/scale/sessions/"+created.ID+"/export?store=true", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.ExportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if resp.Filename != "logo-4x.png" {
		t.Errorf("expected logo-4x.png, got %s", resp.Filename)
	}
	if resp.Width != 400 || resp.Height != 200 {
		t.Errorf("expected 400x200, got %dx%d", resp.Width, resp.Height)
	}
	stored := strings.TrimPrefix(resp.URL, "/exports/")
	if _, err := os.Stat(filepath.Join(s.exportsDir, stored)); err != nil {
		t.Errorf("expected archived file %s: %v", stored, err)
	}
}

func TestCancelSession(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "rounded", "a.png", "image/png", pngBytes(t, 4, 4))
	path := "/api/tools/rounded/sessions/" + created.ID

	for i := 0; i < 2; i++ {
		if w := s.do(httptest.NewRequest(http.MethodDelete, path, nil)); w.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", w.Code)
		}
	}
	if w := s.do(httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after cancel, got %d", w.Code)
	}
	if w := s.do(httptest.NewRequest(http.MethodPost, path+"/export", nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 exporting a cancelled session, got %d", w.Code)
	}
}

func TestExportStoreEscapesURL(t *testing.T) {
	s := newTestServer(t)
	created := s.createSession(t, "rounded", "my logo#1?.png", "image/png", pngBytes(t, 8, 8))

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/tools/rounded/sessions/"+created.ID+"/export?store=true", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.ExportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if strings.ContainsAny(resp.URL, " #?") {
		t.Errorf("expected an escaped URL, got %q", resp.URL)
	}

	parsed, err := url.Parse(resp.URL)
	if err != nil {
		t.Fatalf("export URL does not parse: %v", err)
	}
	stored := strings.TrimPrefix(parsed.Path, "/exports/")
	if !strings.HasSuffix(stored, "-my logo#1?.png") {
		t.Errorf("expected the path to decode to the stored name, got %q", stored)
	}
	if _, err := os.Stat(filepath.Join(s.exportsDir, stored)); err != nil {
		t.Errorf("expected archived file %s: %v", stored, err)
	}
}
