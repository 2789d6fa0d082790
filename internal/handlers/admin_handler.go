package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/middleware"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

// AdminListEvents is the moderation queue. status defaults to pending.
func AdminListEvents(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params models.DiscoveryParams
		_ = c.ShouldBindQuery(&params)

		page, err := as.ListEvents(c.Request.Context(), middleware.Actor(c), params)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(page, ""))
	}
}

func ApproveEvent(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		event, err := as.Approve(c.Request.Context(), middleware.Actor(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, "Event approved"))
	}
}

func RejectEvent(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if !bindOptionalJSON(c, &body) {
			return
		}
		event, err := as.Reject(c.Request.Context(), middleware.Actor(c), id, body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, "Event rejected"))
	}
}

func EventAudit(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		entries, err := as.Audit(c.Request.Context(), middleware.Actor(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(entries, ""))
	}
}

func AdminDashboard(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		dash, err := as.Dashboard(c.Request.Context(), middleware.Actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(dash, ""))
	}
}

func AdminAnalytics(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := as.Analytics(c.Request.Context(), middleware.Actor(c), c.Query("period"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(stats, ""))
	}
}

func AdminListUsers(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params models.UserListParams
		_ = c.ShouldBindQuery(&params)

		users, info, err := as.ListUsers(c.Request.Context(), middleware.Actor(c), params)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(users, info))
	}
}

func AdminUpdateUser(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var update models.AdminUserUpdate
		if !bindJSON(c, &update) {
			return
		}
		user, err := as.UpdateUser(c.Request.Context(), middleware.Actor(c), id, &update)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "User updated"))
	}
}

func AdminSuspendUser(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		user, err := as.SuspendUser(c.Request.Context(), middleware.Actor(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "User suspended"))
	}
}

func AdminListContact(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageFromQuery(c)
		if !ok {
			return
		}
		msgs, info, err := as.ListContact(c.Request.Context(), middleware.Actor(c), c.Query("status"), page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(msgs, info))
	}
}

func AdminSetContactStatus(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if !bindJSON(c, &body) {
			return
		}
		msg, err := as.SetContactStatus(c.Request.Context(), middleware.Actor(c), id, body.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(msg, "Message updated"))
	}
}
