package handler

import (
	"github.com/gin-gonic/gin"
)

// NewPublicRouter serves the web transport.
func NewPublicRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/anonid", h.GetAnonID)  // Отримання JWT для AnonID
	r.GET("/ws", h.ServeWebSocket) // WebSocket Upgrade
	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	return r
}

// NewAdminRouter serves the moderation console behind HTTP Basic auth.
// /metrics stays open for the scraper.
func NewAdminRouter(h *Handler, accounts gin.Accounts) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))

	admin := r.Group("/admin", gin.BasicAuth(accounts))
	admin.GET("/stats", h.Stats)
	admin.GET("/rooms", h.ListRooms)
	admin.GET("/rooms/:id", h.GetRoom)
	admin.GET("/reports", h.ListReports)
	admin.POST("/ban", h.Ban)
	admin.POST("/unban", h.Unban)
	return r
}
