package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/models"
)

// respondError maps a service error onto a status code. Anything that is not
// a known kind is handed to the ErrorHandler middleware as a 500.
func respondError(c *gin.Context, err error) {
	var fe *models.FieldError
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, models.FieldErrorResponse(fe))
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	case errors.Is(err, models.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse(err.Error()))
	case errors.Is(err, models.ErrQuotaExceeded):
		resp := models.CodedErrorResponse(err.Error(), "quota_exceeded")
		resp.Message = "You have reached your free event limit. Upgrade to premium for unlimited events."
		c.JSON(http.StatusForbidden, resp)
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse(err.Error()))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse(err.Error()))
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse(err.Error()))
	default:
		_ = c.Error(err)
	}
}

// parseID reads the :id path parameter. Surrounding quotes are tolerated
// because some clients template ids as JSON strings.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	raw := strings.Trim(strings.TrimSpace(c.Param("id")), "\"'")
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.FieldErrorResponse(&models.FieldError{Field: "id", Reason: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON only decodes. Validation belongs to the services.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, models.FieldErrorResponse(&models.FieldError{Field: "body", Reason: "malformed JSON"}))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.FieldErrorResponse(&models.FieldError{Field: "body", Reason: "malformed JSON"}))
		return false
	}
	return true
}

func pageFromQuery(c *gin.Context) (models.Pagination, bool) {
	var params models.PageParams
	_ = c.ShouldBindQuery(&params)
	page, err := params.Pagination()
	if err != nil {
		respondError(c, err)
		return page, false
	}
	return page, true
}
