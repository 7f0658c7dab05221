package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coophours/internal/config"
	"coophours/internal/database"
	"coophours/internal/events"
	"coophours/internal/export"
	"coophours/internal/models"
	"coophours/internal/service"
	"coophours/internal/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testEnv struct {
	server *Server
	db     *database.DB
}

func setupServer(t *testing.T, sessionTimeout time.Duration) *testEnv {
	t.Helper()

	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SyncEquipment(ctx, []models.Equipment{
		{ID: 1, Name: "Tractor", ManagerUsername: "alice", IsActive: true, SortOrder: 1},
		{ID: 2, Name: "Seeder", ManagerUsername: "bob", IsActive: true, SortOrder: 2},
	}))

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: 0},
		RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000},
	}

	bus := events.NewEventBus()
	sessions := session.NewManager(session.NewMemoryStore(), db, sessionTimeout, &logger)
	reservations := service.NewReservationService(db, bus, &logger)
	users := service.NewUserService(db, bus, &logger)
	exporter := export.NewExporter(db, &logger)

	return &testEnv{
		server: NewServer(cfg, sessions, reservations, users, exporter, nil, &logger),
		db:     db,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set(SessionTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, first, last string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":   username,
		"password":   "secret",
		"first_name": first,
		"last_name":  last,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupServer(t, 0)

	env.register(t, "alice", "Alice", "Martin")

	t.Run("duplicate username", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"username": "alice", "password": "other",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login", func(t *testing.T) {
		token := env.login(t, "alice")
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "alice", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown user is indistinguishable", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "nobody", "password": "secret",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCreateReservationFlow(t *testing.T) {
	env := setupServer(t, 0)
	env.register(t, "alice", "Alice", "Martin")
	env.register(t, "bob", "Bob", "Dupont")
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")

	t.Run("requires session", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", "", map[string]float64{
			"start_hour": 0, "end_hour": 2,
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", alice, map[string]float64{
			"start_hour": 4, "end_hour": 6,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created models.Reservation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotZero(t, created.ID)
		assert.Equal(t, "alice", created.Username)
	})

	t.Run("conflict", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", bob, map[string]float64{
			"start_hour": 5, "end_hour": 7,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("back to back", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", bob, map[string]float64{
			"start_hour": 6, "end_hour": 8,
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("invalid interval", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", alice, map[string]float64{
			"start_hour": 5, "end_hour": 5,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown equipment", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/equipment/99/reservations", alice, map[string]float64{
			"start_hour": 0, "end_hour": 1,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("suggested start follows the ledger", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment/1/suggested-start", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]float64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 8.0, resp["suggested_start"])
	})

	t.Run("fresh equipment suggests zero", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment/2/suggested-start", bob, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]float64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 0.0, resp["suggested_start"])
	})
}

func TestManagerLedgerView(t *testing.T) {
	env := setupServer(t, 0)
	env.register(t, "alice", "Alice", "Martin")
	env.register(t, "bob", "Bob", "Dupont")
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", bob, map[string]float64{
		"start_hour": 0, "end_hour": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", alice, map[string]float64{
		"start_hour": 3, "end_hour": 4.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("non-manager is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment/1/reservations", bob, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("manager sees ledger and totals", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment/1/reservations", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Reservations []models.ReservationWithOwner `json:"reservations"`
			Totals       []service.OwnerHours          `json:"totals"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		require.Len(t, resp.Reservations, 2)
		assert.Equal(t, "Bob Dupont", resp.Reservations[0].OwnerName)

		require.Len(t, resp.Totals, 2)
		assert.Equal(t, "bob", resp.Totals[0].Username)
		assert.Equal(t, 3.0, resp.Totals[0].TotalHours)
		assert.Equal(t, 1.5, resp.Totals[1].TotalHours)
	})
}

func TestEquipmentList(t *testing.T) {
	env := setupServer(t, 0)
	env.register(t, "alice", "Alice", "Martin")
	alice := env.login(t, "alice")

	t.Run("requires session", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lists in sort order", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Equipment []models.Equipment `json:"equipment"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Equipment, 2)
		assert.Equal(t, "Tractor", resp.Equipment[0].Name)
	})
}

type fakeScheduler struct {
	equipmentIDs []int64
}

func (f *fakeScheduler) Enqueue(ctx context.Context, equipmentID int64, requestedBy string) (*models.ExportJob, error) {
	f.equipmentIDs = append(f.equipmentIDs, equipmentID)
	return &models.ExportJob{ID: int64(len(f.equipmentIDs)), EquipmentID: equipmentID}, nil
}

func TestExportDownload(t *testing.T) {
	env := setupServer(t, 0)
	scheduler := &fakeScheduler{}
	env.server.snapshots = scheduler
	env.register(t, "alice", "Alice", "Martin")
	env.register(t, "bob", "Bob", "Dupont")
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/v1/equipment/1/reservations", bob, map[string]float64{
		"start_hour": 0, "end_hour": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("non-manager is forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment/1/export", bob, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("manager downloads a workbook", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment/1/export", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "tractor_")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()

		title, err := f.GetCellValue("Reservations", "A1")
		require.NoError(t, err)
		assert.Equal(t, "Usage ledger: Tractor", title)

		owner, err := f.GetCellValue("Reservations", "A3")
		require.NoError(t, err)
		assert.Equal(t, "Bob Dupont", owner)

		// The download also queued an archival snapshot.
		require.Len(t, scheduler.equipmentIDs, 1)
		assert.Equal(t, int64(1), scheduler.equipmentIDs[0])
	})
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := setupServer(t, 50*time.Millisecond)
	env.register(t, "alice", "Alice", "Martin")
	alice := env.login(t, "alice")

	t.Run("fresh session works", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/equipment", alice, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("idle session expires", func(t *testing.T) {
		time.Sleep(80 * time.Millisecond)
		rec := env.do(t, http.MethodGet, "/api/v1/equipment", alice, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logout kills the session", func(t *testing.T) {
		token := env.login(t, "alice")
		rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/equipment", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRateLimiting(t *testing.T) {
	env := setupServer(t, 0)
	env.server.limiter = newRateLimiter(config.RateLimitConfig{RPS: 1, Burst: 2})

	limited := 0
	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "nobody", "password": "x",
		})
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Greater(t, limited, 0, "expected some requests to be rate limited")
}

func TestInvalidEquipmentID(t *testing.T) {
	env := setupServer(t, 0)
	env.register(t, "alice", "Alice", "Martin")
	alice := env.login(t, "alice")

	for _, path := range []string{
		"/api/v1/equipment/abc/suggested-start",
		"/api/v1/equipment/-1/suggested-start",
	} {
		rec := env.do(t, http.MethodGet, path, alice, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, fmt.Sprintf("path %s", path))
	}
}
