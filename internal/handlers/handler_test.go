// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"mailsmith/internal/ai"
	"mailsmith/internal/cache"
	"mailsmith/internal/database"
	"mailsmith/internal/middleware"
	"mailsmith/internal/models"
	"mailsmith/internal/session"
	"mailsmith/internal/store"
)

// mockAIProvider implements ai.Provider for handler tests. Without a
// GenerateStream method, the registry degrades it to a single chunk
// carrying the full response, which is exactly what the SSE tests need.
type mockAIProvider struct {
	name     string
	response string
	err      error
}

func (m *mockAIProvider) Name() string { return m.name }
func (m *mockAIProvider) Generate(_ context.Context, _, _ string) (string, error) {
	return m.response, m.err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "mailsmith")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "mailsmith")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		for _, pattern := range []string{"session:*", "preview:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB            *sql.DB
	Valkey        *redis.Client
	Sessions      *session.Store
	UserStore     *store.UserStore
	TemplateStore *store.TemplateStore
	VersionStore  *store.VersionStore
	ChatStore     *store.ChatStore
	BrandKitStore *store.BrandKitStore
	ImageStore    *store.ImageAssetStore
	PreviewCache  *cache.PreviewCache
	AIRegistry    *ai.Registry
	API           *API
	Auth          *Auth
	Users         *Users

	OrgID  uuid.UUID
	UserID uuid.UUID
}

// newTestEnv creates a complete test environment plus one organization
// and one admin user to own the fixtures.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	sessions := session.NewStore(vk, false)
	userStore := store.NewUserStore(db)
	templateStore := store.NewTemplateStore(db)
	versionStore := store.NewVersionStore(db)
	chatStore := store.NewChatStore(db)
	brandKitStore := store.NewBrandKitStore(db)
	imageStore := store.NewImageAssetStore(db)
	previewCache := cache.NewPreviewCache(vk, 1*time.Minute)

	aiRegistry := ai.NewRegistry("test", map[string]ai.ProviderConfig{})
	aiRegistry.Register("test", &mockAIProvider{
		name:     "test",
		response: "mock AI response",
	})

	orgID := seedOrg(t, db)
	user := seedUser(t, userStore, orgID, models.RoleAdmin)

	api := NewAPI(templateStore, versionStore, chatStore, brandKitStore, imageStore, aiRegistry, nil, previewCache)
	auth := NewAuth(sessions, userStore)
	users := NewUsers(userStore)

	return &testEnv{
		DB:            db,
		Valkey:        vk,
		Sessions:      sessions,
		UserStore:     userStore,
		TemplateStore: templateStore,
		VersionStore:  versionStore,
		ChatStore:     chatStore,
		BrandKitStore: brandKitStore,
		ImageStore:    imageStore,
		PreviewCache:  previewCache,
		AIRegistry:    aiRegistry,
		API:           api,
		Auth:          auth,
		Users:         users,
		OrgID:         orgID,
		UserID:        user.ID,
	}
}

// seedOrg inserts a fresh organization and removes it (with everything
// cascading) after the test.
func seedOrg(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := db.QueryRow(`
		INSERT INTO organizations (name) VALUES ('Test Org ' || gen_random_uuid()::text)
		RETURNING id
	`).Scan(&id)
	if err != nil {
		t.Fatalf("seed org: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM organizations WHERE id = $1`, id)
	})
	return id
}

// seedUser creates a user in the given organization with a unique email.
func seedUser(t *testing.T, users *store.UserStore, orgID uuid.UUID, role models.Role) *models.User {
	t.Helper()

	email := "user-" + uuid.NewString() + "@test.local"
	user, err := users.Create(orgID, email, "correct-horse-battery", "Test User", role)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// seedTemplate creates a draft template owned by the env's org and user.
func (env *testEnv) seedTemplate(t *testing.T, name string) *models.Template {
	t.Helper()

	tmpl, err := env.TemplateStore.Create(&models.Template{
		OrgID:     env.OrgID,
		Name:      name,
		StyleType: models.StyleTypeMinimal,
		Status:    models.TemplateStatusDraft,
		CreatedBy: env.UserID,
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return tmpl
}

// session returns session data matching the env's seeded user.
func (env *testEnv) session() *session.Data {
	return &session.Data{
		UserID:      env.UserID,
		OrgID:       env.OrgID,
		Email:       "user@test.local",
		DisplayName: "Test User",
		Role:        string(models.RoleAdmin),
		TwoFADone:   true,
	}
}

// sessionFor builds session data for an arbitrary user.
func sessionFor(user *models.User, orgID uuid.UUID) *session.Data {
	return &session.Data{
		UserID:      user.ID,
		OrgID:       orgID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		TwoFADone:   true,
	}
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
