package staff

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the staff admin surface. Reads are open (the shared
// device shows a staff picker before any auth); mutations need a manager
// token.
func RegisterRoutes(r *gin.RouterGroup, h *Handler, managerOnly gin.HandlerFunc) {
	grp := r.Group("/staff")
	{
		grp.GET("", h.List)
		grp.POST("", managerOnly, h.Create)
		grp.PATCH("/:id", managerOnly, h.Update)
		grp.DELETE("/:id", managerOnly, h.Deactivate)
	}
}
