package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accordlabs/accord-gateway/internal/rooms"
)

func (h *HTTPHandler) BillingConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.instance(c).Subscription.ClientConfig())
}

func (h *HTTPHandler) SubscriptionStatus(c *gin.Context) {
	inst := h.instance(c)

	status, err := inst.Subscription.Status(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *HTTPHandler) CreateCheckout(c *gin.Context) {
	inst := h.instance(c)

	var req struct {
		PriceID string `json:"price_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := inst.Subscription.CreateCheckout(c.Request.Context(), req.PriceID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *HTTPHandler) CreatePortal(c *gin.Context) {
	inst := h.instance(c)

	sess, err := inst.Subscription.CreatePortal(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Rooms.

func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	inst := h.instance(c)

	var req rooms.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := inst.Rooms.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *HTTPHandler) ListRooms(c *gin.Context) {
	inst := h.instance(c)

	list, err := inst.Rooms.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": list})
}

func (h *HTTPHandler) JoinRoom(c *gin.Context) {
	inst := h.instance(c)

	room, err := inst.Rooms.Join(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *HTTPHandler) SignalRoom(c *gin.Context) {
	inst := h.instance(c)

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := inst.Rooms.Signal(c.Request.Context(), c.Param("id"), payload); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UI hints.

func (h *HTTPHandler) PutHint(c *gin.Context) {
	inst := h.instance(c)

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.hints.Put(c.Request.Context(), inst.ID, c.Param("kind"), req.Value); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *HTTPHandler) GetHint(c *gin.Context) {
	inst := h.instance(c)

	value, err := h.hints.Get(c.Request.Context(), inst.ID, c.Param("kind"))
	if errors.Is(err, rooms.ErrHintNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

func (h *HTTPHandler) TakeHint(c *gin.Context) {
	inst := h.instance(c)

	value, err := h.hints.Take(c.Request.Context(), inst.ID, c.Param("kind"))
	if errors.Is(err, rooms.ErrHintNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

// Rewards.

func (h *HTTPHandler) Streak(c *gin.Context) {
	inst := h.instance(c)

	streak, err := inst.Rewards.Streak(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, streak)
}

func (h *HTTPHandler) Challenges(c *gin.Context) {
	inst := h.instance(c)

	challenges, err := inst.Rewards.Challenges(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenges": challenges})
}

func (h *HTTPHandler) Achievements(c *gin.Context) {
	inst := h.instance(c)

	achievements, err := inst.Rewards.Achievements(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": achievements})
}
