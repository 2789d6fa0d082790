package services

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joshua-takyi/rondpoint/internal/messaging"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)

type testEnv struct {
	repo *models.MemoryRepo
	deps Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := models.NewMemoryRepo()
	return &testEnv{
		repo: repo,
		deps: Deps{
			Store: repo,
			Docs:  repo,
			Now:   func() time.Time { return testNow },
		},
	}
}

func (env *testEnv) seedUser(t *testing.T, role models.Role) *models.User {
	t.Helper()
	u := models.NewUserFromIdentity(&models.Identity{
		Subject: gofakeit.UUID(),
		Email:   gofakeit.Email(),
		Name:    gofakeit.Name(),
	}, testNow)
	u.Role = role
	created, err := env.repo.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (env *testEnv) makePremium(t *testing.T, u *models.User) *models.User {
	t.Helper()
	updated, err := env.repo.UpdateUserFields(context.Background(), u.ID, map[string]interface{}{
		"is_premium":         true,
		"premium_expires_at": testNow.AddDate(0, 1, 0),
	}, testNow)
	require.NoError(t, err)
	return updated
}

func actorOf(u *models.User) *models.Actor {
	a := models.NewActor(u, testNow)
	a.IP = "203.0.113.7"
	return a
}

func eventInput(date time.Time) *models.EventInput {
	return &models.EventInput{
		Title:       gofakeit.LoremIpsumSentence(4),
		Description: gofakeit.LoremIpsumSentence(15),
		Date:        date,
		Location:    gofakeit.City(),
		ArtType:     models.ArtPainting,
		Category:    models.CategoryVernissage,
		Tags:        []string{"Modern"},
	}
}

// seedEvent stores an event with the given status straight through the repo.
func (env *testEnv) seedEvent(t *testing.T, owner *models.User, status models.EventStatus, date time.Time) *models.Event {
	t.Helper()
	in := eventInput(date)
	in.Normalize()
	e := in.ToEvent(owner, testNow)
	e.Status = status
	created, err := env.repo.CreateEventWithQuota(context.Background(), e, testNow)
	require.NoError(t, err)
	return created
}

// memCache is a Discovery that keeps JSON pages in a map.
type memCache struct {
	mu          sync.Mutex
	gen         int
	pages       map[string][]byte
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{pages: make(map[string][]byte)}
}

func (c *memCache) key(k string) string {
	return strconv.Itoa(c.gen) + ":" + k
}

func (c *memCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.pages[c.key(key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[c.key(key)] = raw
	return nil
}

func (c *memCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidated++
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Publish(ctx context.Context, topic messaging.Topic, correlationID string, data interface{}) error {
	args := m.Called(topic, data)
	return args.Error(0)
}
