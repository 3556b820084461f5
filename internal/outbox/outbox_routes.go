package outbox

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.RouterGroup, h *Handler, managerOnly gin.HandlerFunc) {
	subs := r.Group("/submissions")
	{
		subs.GET("", h.List)
		subs.GET("/:id", h.Get)
		subs.POST("/:id/retry", managerOnly, h.Retry)
	}
}
