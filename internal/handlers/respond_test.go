package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		field  string
		code   string
	}{
		{"field error", models.NewFieldError("title", "is required"), http.StatusBadRequest, "title", ""},
		{"invalid input", fmt.Errorf("bad page: %w", models.ErrInvalidInput), http.StatusBadRequest, "", ""},
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized, "", ""},
		{"quota", fmt.Errorf("create: %w", models.ErrQuotaExceeded), http.StatusForbidden, "", "quota_exceeded"},
		{"forbidden", models.ErrForbidden, http.StatusForbidden, "", ""},
		{"not found", fmt.Errorf("event %w", models.ErrNotFound), http.StatusNotFound, "", ""},
		{"conflict", models.ErrConflict, http.StatusConflict, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)

			require.Equal(t, tt.status, w.Code)
			var resp models.ApiResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.field, resp.Field)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestRespondErrorDefersUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("connection reset"))
	assert.Len(t, c.Errors, 1)
	assert.Zero(t, w.Body.Len())
}

func TestParseID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: `"7b0a9a36-3d52-4a4e-8d8e-2f5f4f0b6a11"`}}
	id, ok := parseID(c)
	require.True(t, ok)
	assert.Equal(t, "7b0a9a36-3d52-4a4e-8d8e-2f5f4f0b6a11", id.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	_, ok = parseID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBindOptionalJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var body struct {
		Featured *bool `json:"featured"`
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.True(t, bindOptionalJSON(c, &body))
	assert.Nil(t, body.Featured)

	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"featured":true}`))
	c.Request.Header.Set("Content-Type", "application/json")
	require.True(t, bindOptionalJSON(c, &body))
	require.NotNil(t, body.Featured)
	assert.True(t, *body.Featured)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{featured`))
	assert.False(t, bindOptionalJSON(c, &body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
