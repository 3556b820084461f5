package session

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.RouterGroup, h *Handler, managerOnly gin.HandlerFunc) {
	sessions := r.Group("/sessions")
	{
		sessions.GET("/active", h.CheckActive)
		sessions.POST("", h.Start)
		sessions.GET("/:id", h.Get)
		sessions.POST("/:id/resume", h.Resume)
		sessions.PATCH("/:id/tasks", h.UpdateTask)
		sessions.POST("/:id/submit", h.SubmitForReview)
		sessions.POST("/:id/approve", h.Approve)
		sessions.POST("/:id/force-close", managerOnly, h.ForceClose)
	}
}
