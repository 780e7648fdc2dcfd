package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/status", h.GetStatus)

		// Sync triggers (asynchronous, single-flight)
		api.POST("/sync", h.TriggerSync)
		api.POST("/sync/:source", h.TriggerSync)

		// Summaries
		summaries := api.Group("/summaries")
		{
			summaries.POST("/generate", h.TriggerSummaries)
			summaries.GET("/aggregate", h.GetAggregatedSummary)
			summaries.GET("/overviews", h.GetRollingOverviews)
		}

		// Checklist
		checklist := api.Group("/checklist")
		{
			checklist.GET("/:category", h.GetChecklist)
			checklist.PATCH("/:id/toggle", h.ToggleChecklistItem)
			checklist.PATCH("/:id", h.SetChecklistItemChecked)
		}
	}
}
