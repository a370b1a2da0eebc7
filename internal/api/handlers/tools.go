package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/imgtools/internal/imaging"
	"github.com/codyseavey/imgtools/internal/models"
	"github.com/codyseavey/imgtools/internal/services"
)

// DefaultMaxUploadBytes caps an upload when no limit is configured.
const DefaultMaxUploadBytes = 25 << 20

type ToolHandler struct {
	sessions       *services.SessionStore
	preferences    *services.PreferenceService
	telemetry      services.Telemetry
	exportStorage  *services.ExportStorageService
	maxUploadBytes int64
}

func NewToolHandler(sessions *services.SessionStore, preferences *services.PreferenceService, telemetry services.Telemetry, exportStorage *services.ExportStorageService, maxUploadBytes int64) *ToolHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ToolHandler{
		sessions:       sessions,
		preferences:    preferences,
		telemetry:      telemetry,
		exportStorage:  exportStorage,
		maxUploadBytes: maxUploadBytes,
	}
}

// ListTools returns the tool catalogue.
func (h *ToolHandler) ListTools(c *gin.Context) {
	tools := make([]models.ToolInfo, 0, len(services.Tools()))
	for _, spec := range services.Tools() {
		tools = append(tools, spec.Info())
	}
	c.JSON(http.StatusOK, gin.H{"tools": tools})
}

// GetPreferences returns the tool's stored defaults.
func (h *ToolHandler) GetPreferences(c *gin.Context) {
	spec, ok := h.lookupTool(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.preferences.Load(spec))
}

// CreateSession loads the uploaded file into a new session and renders it with
// the tool's stored defaults. A file that cannot be loaded creates nothing.
func (h *ToolHandler) CreateSession(c *gin.Context) {
	spec, ok := h.lookupTool(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	session := services.NewToolSession(spec, h.preferences.Load(spec), h.telemetry)
	if err := session.Load(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data); err != nil {
		respondError(c, err)
		return
	}

	// A render failure is reported in the session state; the asset stays loaded
	if _, err := session.Render(c.Request.Context()); err != nil {
		log.Printf("Warning: initial %s render of %q failed: %v", spec.Tool, fileHeader.Filename, err)
	}

	h.sessions.Add(session)
	c.JSON(http.StatusCreated, session.Snapshot())
}

// GetSession returns the session state.
func (h *ToolHandler) GetSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// UpdateParams changes the session parameters, stores them as the tool's new
// defaults and re-renders.
func (h *ToolHandler) UpdateParams(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req models.UpdateParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs := req.Apply(session.Preferences())
	if err := session.SetPreferences(prefs); err != nil {
		respondError(c, err)
		return
	}
	if err := h.preferences.Save(session.Spec, session.Preferences()); err != nil {
		log.Printf("Warning: failed to save %s preferences: %v", session.Spec.Tool, err)
	}

	if session.Asset() != nil {
		if _, err := session.Render(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// Preview returns the current output, downscaled to max_width when wider.
func (h *ToolHandler) Preview(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	maxWidth := 0
	if v := c.Query("max_width"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_width must be a non-negative integer"})
			return
		}
		maxWidth = parsed
	}

	out := session.Output()
	if out == nil {
		if session.Asset() == nil {
			respondError(c, &imaging.ValidationError{Field: "file", Reason: "no image loaded"})
			return
		}
		var err error
		if out, err = session.Render(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
	}

	data, err := imaging.Preview(out, maxWidth)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

// Export returns the PNG as a download, or archives it when store=true.
func (h *ToolHandler) Export(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	result, err := session.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("store") == "true" {
		if h.exportStorage == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export storage is not configured"})
			return
		}
		stored, err := h.exportStorage.Save(result.Filename, result.PNG)
		if err != nil {
			log.Printf("Failed to archive export %s: %v", result.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store export"})
			return
		}
		c.JSON(http.StatusCreated, models.ExportResponse{
			Filename: result.Filename,
			URL:      "/exports/" + url.PathEscape(stored),
			Width:    result.Width,
			Height:   result.Height,
			Bytes:    len(result.PNG),
		})
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	c.Data(http.StatusOK, "image/png", result.PNG)
}

// CancelSession drops the session and its asset. Unknown ids are accepted so
// the call can be repeated.
func (h *ToolHandler) CancelSession(c *gin.Context) {
	if _, ok := h.lookupTool(c); !ok {
		return
	}
	h.sessions.Remove(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *ToolHandler) lookupTool(c *gin.Context) (services.ToolSpec, bool) {
	spec, err := services.LookupTool(c.Param("tool"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return services.ToolSpec{}, false
	}
	return spec, true
}

func (h *ToolHandler) lookupSession(c *gin.Context) (*services.ToolSession, bool) {
	spec, ok := h.lookupTool(c)
	if !ok {
		return nil, false
	}
	session, found := h.sessions.Get(c.Param("id"))
	if !found || session.Spec.Tool != spec.Tool {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return session, true
}

// respondError maps pipeline errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *imaging.ValidationError
		decodeErr     *imaging.DecodeError
		parseErr      *imaging.ParseError
		surfaceErr    *imaging.SurfaceError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, imaging.ErrUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &decodeErr), errors.As(err, &parseErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, imaging.ErrSuperseded):
		status = http.StatusConflict
	case errors.As(err, &surfaceErr):
		status = http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body
		status = 499
	}

	if status >= http.StatusInternalServerError {
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
