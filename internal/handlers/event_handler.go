package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/middleware"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

const SessionIDHeader = "X-Session-ID"

func ListEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params models.DiscoveryParams
		_ = c.ShouldBindQuery(&params)

		page, err := es.Discover(c.Request.Context(), params)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(page, ""))
	}
}

func FeaturedEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := es.Featured(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"events": events}, ""))
	}
}

// GetEvent serves a single event. Public views are counted per session.
func GetEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		view := &services.ViewContext{
			SessionID: c.GetHeader(SessionIDHeader),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		event, err := es.GetEvent(c.Request.Context(), middleware.Actor(c), id, view)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, ""))
	}
}

func CreateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.EventInput
		if !bindJSON(c, &in) {
			return
		}
		event, err := es.CreateEvent(c.Request.Context(), middleware.Actor(c), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		message := "Event submitted for review"
		if event.Status == models.StatusApproved {
			message = "Event published"
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(event, message))
	}
}

func UpdateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var patch models.EventPatch
		if !bindJSON(c, &patch) {
			return
		}
		event, err := es.UpdateEvent(c.Request.Context(), middleware.Actor(c), id, &patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, "Event updated"))
	}
}

func DeleteEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := es.DeleteEvent(c.Request.Context(), middleware.Actor(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Event deleted"))
	}
}

// FeatureEvent flips the featured flag, or sets it when the body carries
// {"featured": bool}.
func FeatureEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var body struct {
			Featured *bool `json:"featured"`
		}
		if !bindOptionalJSON(c, &body) {
			return
		}

		var (
			event *models.Event
			err   error
		)
		if body.Featured != nil {
			event, err = es.SetFeatured(c.Request.Context(), middleware.Actor(c), id, *body.Featured)
		} else {
			event, err = es.ToggleFeatured(c.Request.Context(), middleware.Actor(c), id)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		message := "Event unfeatured"
		if event.Featured {
			message = "Event featured"
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, message))
	}
}

func EventStats(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		stats, err := es.Stats(c.Request.Context(), middleware.Actor(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(stats, ""))
	}
}
