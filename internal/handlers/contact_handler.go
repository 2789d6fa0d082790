package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

func SubmitContact(cs *services.ContactService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.ContactInput
		if !bindJSON(c, &in) {
			return
		}
		msg, err := cs.Submit(c.Request.Context(), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(gin.H{"id": msg.ID}, "Message received"))
	}
}
