package audit

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.RouterGroup, h *Handler, managerOnly gin.HandlerFunc) {
	logs := r.Group("/audit")
	logs.Use(managerOnly)
	{
		logs.GET("", h.List)
	}
}
