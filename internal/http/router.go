// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripgen/internal/http/handlers"
	"tripgen/internal/http/middleware"
	"tripgen/internal/modules/job"
	"tripgen/internal/modules/recommend"
	"tripgen/internal/modules/schedule"
	"tripgen/internal/notify"
)

func NewRouter(
	jobs *job.Orchestrator,
	recommendService *recommend.Service,
	scheduleService *schedule.Service,
	hub *notify.Hub,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	ai := handlers.NewAIHandler(jobs, recommendService, scheduleService, hub)

	api := r.Group("/api/ai")
	api.POST("/schedules", ai.SubmitSchedule)
	api.POST("/schedules/regenerate", ai.SubmitDaySchedule)
	api.POST("/recommendations", ai.SubmitRecommendation)

	api.GET("/jobs/:requestId/status", ai.JobStatus)
	api.GET("/jobs/:requestId/result", ai.JobResult)
	api.GET("/jobs/:requestId/events", ai.JobEvents)
	api.GET("/jobs/:requestId/ws", ai.WatchJob)
	api.POST("/jobs/:requestId/cancel", ai.CancelJob)
	api.POST("/jobs/:requestId/retry", ai.RetryJob)

	api.GET("/trips/:tripId/jobs", ai.TripJobs)
	api.GET("/trips/:tripId/schedule", ai.LatestSchedule)
	api.GET("/trips/:tripId/schedule/history", ai.ScheduleHistory)
	api.POST("/trips/:tripId/weather-impact", ai.WeatherImpact)

	api.GET("/recommendations/popular", ai.PopularRecommendations)
	api.DELETE("/recommendations/places/:placeId", ai.InvalidatePlace)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
