package pinauth

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.RouterGroup, h *Handler, throttle gin.HandlerFunc) {
	auth := r.Group("/auth/pin", throttle)
	{
		auth.POST("/setup", h.Setup)
		auth.POST("/verify", h.Verify)
		auth.POST("/change", h.Change)
	}
}
