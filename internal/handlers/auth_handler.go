package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/services"
)

func Signup(as *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.SignupInput
		if !bindJSON(c, &in) {
			return
		}
		tokens, err := as.Signup(c.Request.Context(), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		message := "Account created"
		if tokens.AccessToken == "" {
			message = "Account created, check your email to confirm it"
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(tokens, message))
	}
}

func Login(as *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.LoginInput
		if !bindJSON(c, &in) {
			return
		}
		tokens, err := as.Login(c.Request.Context(), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(tokens, ""))
	}
}

// RefreshSession trades a refresh token for a new session. Tokens travel in
// the body, never in cookies.
func RefreshSession(as *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if !bindJSON(c, &body) {
			return
		}
		tokens, err := as.Refresh(c.Request.Context(), body.RefreshToken)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(tokens, ""))
	}
}
