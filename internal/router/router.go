package router

import (
	"github.com/gin-gonic/gin"
	"github.com/user/imdbvec/internal/handler"
)

// RegisterRoutes wires every endpoint.
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/search/knn", h.SearchKNN)
		api.GET("/movies/:tconst", h.GetMovie)

		admin := api.Group("/admin")
		{
			admin.POST("/refresh", h.AdminRefresh)
			admin.POST("/backfill", h.AdminBackfill)
			admin.PUT("/movies/:tconst/plot", h.UpdatePlot)
		}
	}
}
