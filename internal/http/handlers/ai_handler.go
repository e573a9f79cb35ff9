// README: HTTP surface for AI generation jobs, itineraries, and the
// recommendation cache.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tripgen/internal/modules/job"
	"tripgen/internal/modules/recommend"
	"tripgen/internal/modules/schedule"
	"tripgen/internal/notify"
	"tripgen/internal/types"
)

type AIHandler struct {
	jobs      *job.Orchestrator
	recommend *recommend.Service
	schedule  *schedule.Service
	hub       *notify.Hub
}

func NewAIHandler(jobs *job.Orchestrator, rec *recommend.Service, sched *schedule.Service, hub *notify.Hub) *AIHandler {
	return &AIHandler{jobs: jobs, recommend: rec, schedule: sched, hub: hub}
}

// SubmitSchedule queues a full itinerary generation.
func (h *AIHandler) SubmitSchedule(c *gin.Context) {
	var req schedule.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Destination == "" {
		writeError(c, http.StatusBadRequest, "missing destination")
		return
	}
	receipt, err := h.jobs.Submit(c.Request.Context(), job.TypeScheduleGeneration, req.TripID, req)
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, receipt)
}

// SubmitDaySchedule queues a single-day regeneration.
func (h *AIHandler) SubmitDaySchedule(c *gin.Context) {
	var req schedule.DayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Day <= 0 {
		writeError(c, http.StatusBadRequest, "day must be positive")
		return
	}
	receipt, err := h.jobs.Submit(c.Request.Context(), job.TypeDayScheduleRegeneration, req.TripID, req)
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, receipt)
}

type recommendationReq struct {
	TripID types.ID `json:"tripId"`
	recommend.Request
}

// SubmitRecommendation queues a place recommendation generation.
func (h *AIHandler) SubmitRecommendation(c *gin.Context) {
	var req recommendationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PlaceID == "" {
		writeError(c, http.StatusBadRequest, "missing place id")
		return
	}
	receipt, err := h.jobs.Submit(c.Request.Context(), job.TypeRecommendationGeneration, req.TripID, req.Request)
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, receipt)
}

// JobStatus returns the polling view for one job.
func (h *AIHandler) JobStatus(c *gin.Context) {
	view, err := h.jobs.Status(c.Request.Context(), types.ID(c.Param("requestId")))
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

// JobResult returns the payload of a completed job.
func (h *AIHandler) JobResult(c *gin.Context) {
	result, err := h.jobs.Result(c.Request.Context(), types.ID(c.Param("requestId")))
	if err != nil {
		writeJobError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", result)
}

// JobEvents returns the transition audit log for one job.
func (h *AIHandler) JobEvents(c *gin.Context) {
	requestID := types.ID(c.Param("requestId"))
	if _, err := h.jobs.Status(c.Request.Context(), requestID); err != nil {
		writeJobError(c, err)
		return
	}
	events, err := h.jobs.Events(c.Request.Context(), requestID)
	if err != nil {
		writeJobError(c, err)
		return
	}
	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		out = append(out, gin.H{
			"from":      e.FromStatus,
			"to":        e.ToStatus,
			"detail":    e.Detail,
			"createdAt": e.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"requestId": requestID, "events": out})
}

// CancelJob aborts a queued or processing job.
func (h *AIHandler) CancelJob(c *gin.Context) {
	requestID := types.ID(c.Param("requestId"))
	if err := h.jobs.Cancel(c.Request.Context(), requestID); err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"requestId": requestID, "status": job.StatusCancelled})
}

// RetryJob re-queues a failed job.
func (h *AIHandler) RetryJob(c *gin.Context) {
	receipt, err := h.jobs.Retry(c.Request.Context(), types.ID(c.Param("requestId")))
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, receipt)
}

// WatchJob upgrades to a websocket that delivers the terminal update. The
// status snapshot that decides on an immediate push is taken after the
// listener is registered, so a job turning terminal during the upgrade is
// never missed; a duplicate push against an already drained subscription is
// a no-op.
func (h *AIHandler) WatchJob(c *gin.Context) {
	requestID := types.ID(c.Param("requestId"))
	if _, err := h.jobs.Status(c.Request.Context(), requestID); err != nil {
		writeJobError(c, err)
		return
	}
	if err := notify.ServeWS(h.hub, string(requestID), c.Writer, c.Request); err != nil {
		return
	}
	view, err := h.jobs.Status(c.Request.Context(), requestID)
	if err != nil || !view.Status.IsFinal() {
		return
	}
	var result *string
	if view.Result != nil {
		s := string(view.Result)
		result = &s
	}
	h.hub.Push(string(requestID), string(view.Status), result, view.Error)
}

// TripJobs lists all jobs submitted for one trip.
func (h *AIHandler) TripJobs(c *gin.Context) {
	jobs, err := h.jobs.ListByTrip(c.Request.Context(), types.ID(c.Param("tripId")))
	if err != nil {
		writeJobError(c, err)
		return
	}
	out := make([]gin.H, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, gin.H{
			"requestId": j.RequestID,
			"jobType":   j.Type,
			"status":    j.Status,
			"progress":  j.Progress,
			"createdAt": j.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"jobs": out})
}

// LatestSchedule returns the newest full itinerary for a trip.
func (h *AIHandler) LatestSchedule(c *gin.Context) {
	sc, err := h.schedule.Latest(c.Request.Context(), types.ID(c.Param("tripId")))
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, scheduleView(sc))
}

// ScheduleHistory returns all stored generations for a trip.
func (h *AIHandler) ScheduleHistory(c *gin.Context) {
	scs, err := h.schedule.History(c.Request.Context(), types.ID(c.Param("tripId")))
	if err != nil {
		writeJobError(c, err)
		return
	}
	out := make([]gin.H, 0, len(scs))
	for _, sc := range scs {
		out = append(out, scheduleView(sc))
	}
	writeJSON(c, http.StatusOK, gin.H{"schedules": out})
}

func scheduleView(sc *schedule.Schedule) gin.H {
	v := gin.H{
		"tripId":    sc.TripID,
		"version":   sc.Version,
		"content":   json.RawMessage(sc.Content),
		"model":     sc.ModelID,
		"createdAt": sc.CreatedAt,
	}
	if sc.Day != nil {
		v["day"] = *sc.Day
	}
	return v
}

type weatherReq struct {
	Forecast string `json:"forecast"`
}

// WeatherImpact analyzes the latest itinerary against a forecast.
func (h *AIHandler) WeatherImpact(c *gin.Context) {
	var req weatherReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Forecast == "" {
		writeError(c, http.StatusBadRequest, "missing forecast")
		return
	}
	analysis, err := h.schedule.WeatherImpact(c.Request.Context(), types.ID(c.Param("tripId")), req.Forecast)
	if err != nil {
		writeJobError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(analysis))
}

// PopularRecommendations lists the most accessed cached recommendations.
func (h *AIHandler) PopularRecommendations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	recs, err := h.recommend.Popular(c.Request.Context(), limit)
	if err != nil {
		writeJobError(c, err)
		return
	}
	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		out = append(out, gin.H{
			"placeId":     r.PlaceID,
			"placeName":   r.PlaceName,
			"content":     json.RawMessage(r.Content),
			"accessCount": r.AccessCount,
			"expiresAt":   r.ExpiresAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"recommendations": out})
}

// InvalidatePlace drops every cached recommendation for a place.
func (h *AIHandler) InvalidatePlace(c *gin.Context) {
	n, err := h.recommend.InvalidatePlace(c.Request.Context(), types.ID(c.Param("placeId")))
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"invalidated": n})
}
