package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accordlabs/accord-gateway/internal/auth"
)

// Providers lists the enabled sign-in providers.
func (h *HTTPHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.providers})
}

// Countries serves the dial-code picker catalog.
func (h *HTTPHandler) Countries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"countries": auth.Countries()})
}

// Session reports whether the instance holds a token and when it
// expires, for the UI's session banner.
func (h *HTTPHandler) Session(c *gin.Context) {
	inst := h.instance(c)
	_, ok := inst.Store.Token()
	resp := gin.H{"authenticated": ok}
	if exp, hasExp := inst.Store.ExpiresAt(); hasExp {
		resp["expires_at"] = exp.Unix()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) Login(c *gin.Context) {
	inst := h.instance(c)

	var creds auth.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := inst.Auth.Login(c.Request.Context(), creds); err != nil {
		h.recordLogin(c, inst.ID, "password", "failure")
		h.respondError(c, err)
		return
	}
	h.recordLogin(c, inst.ID, "password", "success")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *HTTPHandler) Register(c *gin.Context) {
	inst := h.instance(c)

	var creds auth.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := inst.Auth.Register(c.Request.Context(), creds); err != nil {
		h.recordLogin(c, inst.ID, "register", "failure")
		h.respondError(c, err)
		return
	}
	h.recordLogin(c, inst.ID, "register", "success")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *HTTPHandler) OAuth(c *gin.Context) {
	inst := h.instance(c)
	provider := c.Param("provider")

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ex := auth.OAuthExchange{Provider: provider, Token: req.Token}
	if err := inst.Auth.ExchangeOAuth(c.Request.Context(), ex); err != nil {
		h.recordLogin(c, inst.ID, provider, "failure")
		h.respondError(c, err)
		return
	}
	h.recordLogin(c, inst.ID, provider, "success")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *HTTPHandler) TelegramWidget(c *gin.Context) {
	inst := h.instance(c)

	var payload map[string]string
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := inst.Auth.ExchangeTelegramWidget(c.Request.Context(), payload); err != nil {
		h.recordLogin(c, inst.ID, "telegram_widget", "failure")
		h.respondError(c, err)
		return
	}
	h.recordLogin(c, inst.ID, "telegram_widget", "success")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *HTTPHandler) Me(c *gin.Context) {
	inst := h.instance(c)

	profile, err := inst.Auth.Me(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *HTTPHandler) Logout(c *gin.Context) {
	inst := h.instance(c)
	inst.Auth.Logout()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// QR flow.

func (h *HTTPHandler) QRInitiate(c *gin.Context) {
	inst := h.instance(c)

	snap, err := inst.QR.Initiate(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) QRState(c *gin.Context) {
	c.JSON(http.StatusOK, h.instance(c).QR.Snapshot())
}

func (h *HTTPHandler) QRRefresh(c *gin.Context) {
	inst := h.instance(c)

	snap, err := inst.QR.Refresh(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) QRPassword(c *gin.Context) {
	inst := h.instance(c)

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := inst.QR.SubmitPassword(c.Request.Context(), req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Phone flow.

func (h *HTTPHandler) PhoneState(c *gin.Context) {
	c.JSON(http.StatusOK, h.instance(c).Phone.Snapshot())
}

func (h *HTTPHandler) PhoneSubmit(c *gin.Context) {
	inst := h.instance(c)

	var req struct {
		DialCode    string `json:"dial_code" binding:"required"`
		PhoneNumber string `json:"phone_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := inst.Phone.SubmitPhone(c.Request.Context(), req.DialCode, req.PhoneNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) PhoneEdit(c *gin.Context) {
	c.JSON(http.StatusOK, h.instance(c).Phone.EditPhone())
}

func (h *HTTPHandler) PhoneCode(c *gin.Context) {
	inst := h.instance(c)

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := inst.Phone.SubmitCode(c.Request.Context(), req.Code)
	if err == auth.ErrPasswordRequired {
		// Not a failure: the UI switches to the password field.
		c.JSON(http.StatusOK, snap)
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordLogin(c, inst.ID, "phone", "success")
	c.JSON(http.StatusOK, snap)
}

func (h *HTTPHandler) PhonePassword(c *gin.Context) {
	inst := h.instance(c)

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := inst.Phone.SubmitPassword(c.Request.Context(), req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordLogin(c, inst.ID, "phone", "success")
	c.JSON(http.StatusOK, snap)
}
