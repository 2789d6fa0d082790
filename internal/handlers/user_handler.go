package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/middleware"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

func GetProfile(us *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := us.Profile(c.Request.Context(), middleware.Actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, ""))
	}
}

func UpdateProfile(us *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update models.ProfileUpdate
		if !bindJSON(c, &update) {
			return
		}
		user, err := us.UpdateProfile(c.Request.Context(), middleware.Actor(c), &update)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "Profile updated"))
	}
}

// MyEvents lists the caller's events, any status unless ?status= narrows it.
func MyEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pageFromQuery(c)
		if !ok {
			return
		}
		events, err := es.OrganizerEvents(c.Request.Context(), middleware.Actor(c), c.Query("status"), page)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(events, ""))
	}
}

func MyStats(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := es.OrganizerStats(c.Request.Context(), middleware.Actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(counts, ""))
	}
}

func UpgradePremium(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.UpgradeInput
		if !bindJSON(c, &in) {
			return
		}
		res, err := ps.Upgrade(c.Request.Context(), middleware.Actor(c), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if res.Payment.Status == models.PaymentPending {
			status = http.StatusAccepted
		}
		c.JSON(status, models.SuccessResponse(res.Payment, res.Message))
	}
}

func CancelPremium(us *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := us.CancelPremium(c.Request.Context(), middleware.Actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(user, "Premium will not renew. It stays active until it expires."))
	}
}
