package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joshua-takyi/rondpoint/internal/container"
	"github.com/joshua-takyi/rondpoint/internal/helpers"
	"github.com/joshua-takyi/rondpoint/internal/metrics"
	"github.com/joshua-takyi/rondpoint/internal/middleware"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/joshua-takyi/rondpoint/internal/payments"
	"github.com/joshua-takyi/rondpoint/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret     = "route-test-secret-with-at-least-32-characters"
	webhookSecret = "whsec_test"
)

type testApp struct {
	router *gin.Engine
	repo   *models.MemoryRepo
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Field     string          `json:"field"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
	Total     int64           `json:"total"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := models.NewMemoryRepo()
	c := container.NewFromDeps(services.Deps{
		Store:         repo,
		Docs:          repo,
		Metrics:       metrics.New(),
		WebhookSecret: webhookSecret,
	}, helpers.NewHMACVerifier(jwtSecret, "authenticated"), nil)
	return &testApp{router: SetupRoutes(c), repo: repo}
}

// user stores a user with the given role and returns a bearer token for it.
func (a *testApp) user(t *testing.T, role models.Role) (string, *models.User) {
	t.Helper()
	id := &models.Identity{Subject: uuid.NewString(), Email: uuid.NewString()[:8] + "@example.cm"}
	u := models.NewUserFromIdentity(id, time.Now().UTC())
	u.Role = role
	created, err := a.repo.CreateUser(context.Background(), u)
	require.NoError(t, err)

	claims := &helpers.CustomClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token, created
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func eventBody(date time.Time) map[string]interface{} {
	return map[string]interface{}{
		"title":       "Lumières de Douala",
		"description": "A night of light installations along the Wouri.",
		"date":        date.UTC().Format(time.RFC3339),
		"location":    "Douala, Bonanjo",
		"art_type":    "Installation",
		"category":    "Vernissage",
		"price":       0,
	}
}

func (a *testApp) createEvent(t *testing.T, token string) models.Event {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/events", token, eventBody(time.Now().Add(72*time.Hour)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e models.Event
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &e))
	return e
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}

	w := app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rondpoint_http_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestProtectedRoutesRequireAValidToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/events", "", eventBody(time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodPost, "/api/events", "not-a-jwt", eventBody(time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid or expired token", decode(t, w).Error)

	// optional auth still rejects a bad token
	w = app.do(t, http.MethodGet, "/api/events", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFirstRequestProvisionsOrganizer(t *testing.T) {
	app := newTestApp(t)
	claims := &helpers.CustomClaims{
		Email: "new@example.cm",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	w := app.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var u models.User
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &u))
	assert.Equal(t, models.RoleOrganizer, u.Role)
	assert.Equal(t, "new@example.cm", u.Email)
}

func TestEmailLinkedToAnotherIdentityIsForbidden(t *testing.T) {
	app := newTestApp(t)
	_, existing := app.user(t, models.RoleOrganizer)

	claims := &helpers.CustomClaims{
		Email: existing.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	w := app.do(t, http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.False(t, decode(t, w).Success)
}

func TestModerationMakesEventPublic(t *testing.T) {
	app := newTestApp(t)
	orgToken, _ := app.user(t, models.RoleOrganizer)
	adminToken, _ := app.user(t, models.RoleAdmin)

	e := app.createEvent(t, orgToken)
	assert.Equal(t, models.StatusPending, e.Status)

	w := app.do(t, http.MethodGet, "/api/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.EventPage
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	assert.Empty(t, page.Events)

	w = app.do(t, http.MethodGet, "/api/events/"+e.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "pending events are hidden from anonymous callers")

	w = app.do(t, http.MethodGet, "/api/events/"+e.ID.String(), orgToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, "owners see their pending events")

	w = app.do(t, http.MethodPost, "/api/events/"+e.ID.String()+"/approve", orgToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no such route outside /admin")

	w = app.do(t, http.MethodPost, "/api/admin/events/"+e.ID.String()+"/approve", orgToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/admin/events/"+e.ID.String()+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/events", "", nil)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	require.Len(t, page.Events, 1)
	assert.Equal(t, e.ID, page.Events[0].ID)
	assert.Equal(t, int64(1), page.Pagination.Total)

	w = app.do(t, http.MethodPost, "/api/admin/events/"+e.ID.String()+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "approved events cannot be approved again")

	w = app.do(t, http.MethodGet, "/api/admin/events/"+e.ID.String()+"/audit", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.AuditEntry
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditApprove, entries[0].Action)
}

func TestRejectWithReason(t *testing.T) {
	app := newTestApp(t)
	orgToken, _ := app.user(t, models.RoleOrganizer)
	adminToken, _ := app.user(t, models.RoleAdmin)
	e := app.createEvent(t, orgToken)

	w := app.do(t, http.MethodPost, "/api/admin/events/"+e.ID.String()+"/reject", adminToken, map[string]string{"reason": "Missing venue details"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/admin/events/"+e.ID.String()+"/audit", adminToken, nil)
	var entries []models.AuditEntry
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Missing venue details", entries[0].Reason)
}

func TestQuotaExceededCarriesCode(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.user(t, models.RoleOrganizer)

	for i := 0; i < models.FreeEventQuota; i++ {
		app.createEvent(t, token)
	}
	w := app.do(t, http.MethodPost, "/api/events", token, eventBody(time.Now().Add(48*time.Hour)))
	require.Equal(t, http.StatusForbidden, w.Code)
	env := decode(t, w)
	assert.Equal(t, "quota_exceeded", env.Code)
	assert.False(t, env.Success)
}

func TestVisitorsCannotPublish(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.user(t, models.RoleVisitor)

	w := app.do(t, http.MethodPost, "/api/events", token, eventBody(time.Now().Add(48*time.Hour)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBadInputIs400WithField(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.user(t, models.RoleOrganizer)

	body := eventBody(time.Now().Add(48 * time.Hour))
	body["art_type"] = "Origami"
	w := app.do(t, http.MethodPost, "/api/events", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "art_type", decode(t, w).Field)

	w = app.do(t, http.MethodPost, "/api/events", token, "{not json")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "body", decode(t, w).Field)

	w = app.do(t, http.MethodGet, "/api/events/not-a-uuid", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decode(t, w).Field)

	w = app.do(t, http.MethodGet, "/api/events?artType=Origami", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "artType", decode(t, w).Field)
}

func TestFeatureToggle(t *testing.T) {
	app := newTestApp(t)
	adminToken, _ := app.user(t, models.RoleAdmin)
	e := app.createEvent(t, adminToken)
	require.Equal(t, models.StatusApproved, e.Status, "admin events are published directly")

	path := "/api/events/" + e.ID.String() + "/feature"
	w := app.do(t, http.MethodPost, path, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, "Event featured", env.Message)

	w = app.do(t, http.MethodPost, path, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event unfeatured", decode(t, w).Message)

	w = app.do(t, http.MethodPost, path, adminToken, map[string]bool{"featured": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event unfeatured", decode(t, w).Message, "an explicit value is set, not toggled")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	app := newTestApp(t)
	orgToken, _ := app.user(t, models.RoleOrganizer)
	adminToken, admin := app.user(t, models.RoleAdmin)

	for _, path := range []string{"/api/admin/dashboard", "/api/admin/users", "/api/admin/analytics", "/api/admin/contact"} {
		assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, path, orgToken, nil).Code, path)
		assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, path, adminToken, nil).Code, path)
	}

	w := app.do(t, http.MethodPost, "/api/admin/users/"+admin.ID.String()+"/suspend", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "admins cannot suspend themselves")

	_, target := app.user(t, models.RoleOrganizer)
	w = app.do(t, http.MethodDelete, "/api/admin/users/"+target.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "User suspended", decode(t, w).Message)
	suspended, err := app.repo.GetUserByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVisitor, suspended.Role)

	w = app.do(t, http.MethodGet, "/api/admin/analytics?period=0", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContactRoundTrip(t *testing.T) {
	app := newTestApp(t)
	adminToken, _ := app.user(t, models.RoleAdmin)

	w := app.do(t, http.MethodPost, "/api/contact", "", map[string]string{
		"name":     "Ngozi",
		"email":    "ngozi@example.cm",
		"subject":  "Partnership",
		"category": "partnership",
		"message":  "We run a gallery in Buea.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))

	w = app.do(t, http.MethodGet, "/api/admin/contact?status=unread", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode(t, w).Total)

	w = app.do(t, http.MethodPut, "/api/admin/contact/"+created.ID.String(), adminToken, map[string]string{"status": "replied"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodPut, "/api/admin/contact/"+created.ID.String(), adminToken, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpgradeAndWebhook(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.user(t, models.RoleOrganizer)

	w := app.do(t, http.MethodGet, "/api/payments/methods", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/users/upgrade", token, map[string]string{
		"plan":           "monthly",
		"payment_method": "mtn",
		"phone_number":   "+237670000000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/users/profile", token, nil)
	var u models.User
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &u))
	assert.True(t, u.IsPremium)

	w = app.do(t, http.MethodPost, "/api/users/upgrade", token, map[string]string{
		"plan":           "yearly",
		"payment_method": "mtn",
		"phone_number":   "+237670000000",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "already premium")

	w = app.do(t, http.MethodGet, "/api/payments/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode(t, w).Total)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app := newTestApp(t)
	body := `{"transaction_ref":"RPE_1_abc","status":"completed"}`

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set(payments.SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set(payments.SignatureHeader, payments.Sign(webhookSecret, []byte(body)))
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "signed but unknown reference")
}

func TestFavouritesOverHTTP(t *testing.T) {
	app := newTestApp(t)
	adminToken, _ := app.user(t, models.RoleAdmin)
	visitorToken, _ := app.user(t, models.RoleVisitor)
	e := app.createEvent(t, adminToken)

	path := "/api/users/favourites/" + e.ID.String()
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, path, visitorToken, nil).Code)

	w := app.do(t, http.MethodGet, "/api/users/favourites", visitorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Events []models.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, e.ID, body.Events[0].ID)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodDelete, path, visitorToken, nil).Code)
}

func TestAuthRoutesNeedSupabase(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.cm", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
