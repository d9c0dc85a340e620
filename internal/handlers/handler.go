package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accordlabs/accord-gateway/internal/auth"
	"github.com/accordlabs/accord-gateway/internal/flows"
	"github.com/accordlabs/accord-gateway/internal/importer"
	"github.com/accordlabs/accord-gateway/internal/repository"
	"github.com/accordlabs/accord-gateway/internal/rooms"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
)

// InstanceHeader carries the client's flow-instance id on every
// request after the instance has been created.
const InstanceHeader = "X-Flow-Instance"

const instanceContextKey = "flow_instance"

// HTTPHandler is the gateway's REST surface for the SPA.
type HTTPHandler struct {
	registry  *flows.Registry
	hints     *rooms.Hints
	providers []auth.Provider
	audit     *repository.AuditRepository
	logger    logger.Logger
}

func NewHTTPHandler(registry *flows.Registry, hints *rooms.Hints, providers []auth.Provider, audit *repository.AuditRepository, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		registry:  registry,
		hints:     hints,
		providers: providers,
		audit:     audit,
		logger:    log,
	}
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// CreateInstance opens a flow instance. The SPA calls this on boot and
// sends the id back in the instance header; passing a previously issued
// id resumes it, restoring any persisted session token.
func (h *HTTPHandler) CreateInstance(c *gin.Context) {
	var req struct {
		InstanceID string `json:"instance_id"`
	}
	_ = c.ShouldBindJSON(&req)

	var inst *flows.Instance
	if req.InstanceID != "" {
		inst = h.registry.Resume(req.InstanceID)
	} else {
		inst = h.registry.Create()
	}
	c.JSON(http.StatusCreated, gin.H{"instance_id": inst.ID})
}

// DestroyInstance tears an instance down explicitly, e.g. on tab close.
func (h *HTTPHandler) DestroyInstance(c *gin.Context) {
	h.registry.Remove(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequireInstance resolves the flow instance from the request header.
func (h *HTTPHandler) RequireInstance() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(InstanceHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + InstanceHeader + " header"})
			return
		}
		inst, err := h.registry.Get(id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown flow instance"})
			return
		}
		c.Set(instanceContextKey, inst)
		c.Next()
	}
}

func (h *HTTPHandler) instance(c *gin.Context) *flows.Instance {
	return c.MustGet(instanceContextKey).(*flows.Instance)
}

// respondError maps flow and transport errors onto HTTP statuses. The
// backend's own failure text passes through where it exists.
func (h *HTTPHandler) respondError(c *gin.Context, err error) {
	var apiErr *httpclient.APIError

	switch {
	case errors.Is(err, httpclient.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "session_expired": true})
	case errors.Is(err, httpclient.ErrRequestTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrEmptyPhone),
		errors.Is(err, auth.ErrUnknownDialCode),
		errors.Is(err, importer.ErrNoChatsSelected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrWrongState),
		errors.Is(err, importer.ErrNotConnected),
		errors.Is(err, importer.ErrDownloadActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "invalid_password": true})
	case errors.Is(err, auth.ErrFlowClosed), errors.Is(err, importer.ErrDownloadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
	default:
		h.logger.Error("Request failed", logger.Field{Key: "error", Value: err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *HTTPHandler) recordLogin(c *gin.Context, instanceID, method, result string) {
	if err := h.audit.RecordLogin(c.Request.Context(), instanceID, method, result); err != nil {
		h.logger.Warn("Failed to record login attempt", logger.Field{Key: "error", Value: err.Error()})
	}
}
