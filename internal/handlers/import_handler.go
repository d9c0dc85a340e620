package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/accordlabs/accord-gateway/internal/importer"
	"github.com/accordlabs/accord-gateway/pkg/logger"
)

func (h *HTTPHandler) ImportStatus(c *gin.Context) {
	inst := h.instance(c)

	connected, err := inst.Importer.Connected(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": connected})
}

func (h *HTTPHandler) Contacts(c *gin.Context) {
	inst := h.instance(c)

	offset, _ := strconv.Atoi(c.Query("offset"))
	page, err := inst.Importer.Contacts(c.Request.Context(), c.Query("folder_id"), offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *HTTPHandler) Preview(c *gin.Context) {
	inst := h.instance(c)

	msgs, err := inst.Importer.Preview(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *HTTPHandler) StartDownload(c *gin.Context) {
	inst := h.instance(c)

	var req struct {
		ChatIDs  []int64 `json:"chat_ids" binding:"required"`
		DateFrom string  `json:"date_from"`
		DateTo   string  `json:"date_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if inst.ActiveDownload() {
		h.respondError(c, importer.ErrDownloadActive)
		return
	}

	dates := importer.DateRange{From: req.DateFrom, To: req.DateTo}
	watcher, err := inst.Importer.StartDownload(c.Request.Context(), req.ChatIDs, dates)
	if err != nil {
		h.respondError(c, err)
		return
	}
	inst.TrackDownload(watcher)

	c.JSON(http.StatusAccepted, gin.H{"download_id": watcher.ID()})
}

// DownloadStatus reports the watcher's latest view of a job. Terminal
// outcomes are recorded to the audit log the first time they are seen.
func (h *HTTPHandler) DownloadStatus(c *gin.Context) {
	inst := h.instance(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid download id"})
		return
	}

	watcher, ok := inst.Download(id)
	if !ok {
		h.respondError(c, importer.ErrDownloadNotFound)
		return
	}

	snap := watcher.Snapshot()
	resp := gin.H{
		"download_id":   snap.ID,
		"status":        snap.Status,
		"message_count": snap.MessageCount,
		"running":       watcher.Running(),
	}
	if snap.ErrorMessage != "" {
		resp["error_message"] = snap.ErrorMessage
	}
	if pollErr := watcher.Err(); pollErr != nil {
		resp["poll_error"] = pollErr.Error()
	}

	terminal := snap.Status == importer.DownloadCompleted || snap.Status == importer.DownloadFailed
	if terminal && inst.MarkAudited(snap.ID) {
		if err := h.audit.RecordDownload(c.Request.Context(), inst.ID, snap.ID, snap.Status, snap.MessageCount); err != nil {
			h.logger.Warn("Failed to record download", logger.Field{Key: "error", Value: err.Error()})
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) Downloads(c *gin.Context) {
	inst := h.instance(c)

	downloads, err := inst.Importer.Downloads(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloads": downloads})
}

func (h *HTTPHandler) Disconnect(c *gin.Context) {
	inst := h.instance(c)

	if err := inst.Importer.Disconnect(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
