package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the gateway API under /api/v1.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")

	api.POST("/instances", h.CreateInstance)
	api.DELETE("/instances/:id", h.DestroyInstance)
	api.GET("/auth/providers", h.Providers)
	api.GET("/auth/countries", h.Countries)

	scoped := api.Group("", h.RequireInstance())
	{
		scoped.GET("/session", h.Session)

		authGroup := scoped.Group("/auth")
		{
			authGroup.POST("/login", h.Login)
			authGroup.POST("/register", h.Register)
			authGroup.POST("/oauth/:provider", h.OAuth)
			authGroup.POST("/telegram-widget", h.TelegramWidget)
			authGroup.GET("/me", h.Me)
			authGroup.POST("/logout", h.Logout)

			authGroup.GET("/qr", h.QRState)
			authGroup.POST("/qr/initiate", h.QRInitiate)
			authGroup.POST("/qr/refresh", h.QRRefresh)
			authGroup.POST("/qr/password", h.QRPassword)

			authGroup.GET("/phone", h.PhoneState)
			authGroup.POST("/phone", h.PhoneSubmit)
			authGroup.POST("/phone/edit", h.PhoneEdit)
			authGroup.POST("/phone/code", h.PhoneCode)
			authGroup.POST("/phone/password", h.PhonePassword)
		}

		importGroup := scoped.Group("/import")
		{
			importGroup.GET("/status", h.ImportStatus)
			importGroup.GET("/contacts", h.Contacts)
			importGroup.GET("/preview/:chat_id", h.Preview)
			importGroup.POST("/downloads", h.StartDownload)
			importGroup.GET("/downloads", h.Downloads)
			importGroup.GET("/downloads/:id", h.DownloadStatus)
			importGroup.DELETE("/connection", h.Disconnect)
		}

		billing := scoped.Group("/billing")
		{
			billing.GET("/config", h.BillingConfig)
			billing.GET("/status", h.SubscriptionStatus)
			billing.POST("/checkout", h.CreateCheckout)
			billing.POST("/portal", h.CreatePortal)
		}

		roomsGroup := scoped.Group("/rooms")
		{
			roomsGroup.POST("", h.CreateRoom)
			roomsGroup.GET("", h.ListRooms)
			roomsGroup.POST("/:id/join", h.JoinRoom)
			roomsGroup.POST("/:id/signal", h.SignalRoom)
		}

		hintsGroup := scoped.Group("/hints")
		{
			hintsGroup.PUT("/:kind", h.PutHint)
			hintsGroup.GET("/:kind", h.GetHint)
			hintsGroup.POST("/:kind/take", h.TakeHint)
		}

		rewardsGroup := scoped.Group("/rewards")
		{
			rewardsGroup.GET("/streak", h.Streak)
			rewardsGroup.GET("/challenges", h.Challenges)
			rewardsGroup.GET("/achievements", h.Achievements)
		}
	}
}
