package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"investing_monitor/internal/coordinator"
	"investing_monitor/internal/database"
	"investing_monitor/internal/investing"
	"investing_monitor/internal/models"
	"investing_monitor/internal/repository"
	"investing_monitor/internal/secrets"
	"investing_monitor/internal/session"
)

// stubFetcher returns per-portfolio canned snapshots or errors.
type stubFetcher struct {
	mu    sync.Mutex
	snaps map[int64]*models.PortfolioSnapshot
	errs  map[int64]error
}

func (f *stubFetcher) set(id int64, snap *models.PortfolioSnapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[id] = snap
	f.errs[id] = err
}

func (f *stubFetcher) Fetch(ctx context.Context, portfolioID int64) (*models.PortfolioSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[portfolioID]; err != nil {
		return nil, err
	}
	if snap, ok := f.snaps[portfolioID]; ok {
		return snap, nil
	}
	return nil, fmt.Errorf("no canned response for portfolio %d", portfolioID)
}

type testAPI struct {
	router  *chi.Mux
	fetcher *stubFetcher
	coord   *coordinator.Coordinator
	notifs  *repository.NotificationRepository
}

// newTestAPI wires the portfolio and notification routes against a real
// coordinator over a temporary database.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	fetcher := &stubFetcher{
		snaps: make(map[int64]*models.PortfolioSnapshot),
		errs:  make(map[int64]error),
	}
	notifs := repository.NewNotificationRepository(db)
	coord := coordinator.New(
		fetcher,
		repository.NewPortfolioRepository(db),
		repository.NewSnapshotRepository(db),
		notifs,
		repository.NewFetchHistoryRepository(db),
		time.UTC,
	)
	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(coord.Stop)

	portfolioHandler := NewPortfolioHandler(coord, models.DefaultScheduleOptions())
	notificationHandler := NewNotificationHandler(notifs)

	r := chi.NewRouter()
	r.Get("/portfolios", portfolioHandler.List)
	r.Post("/portfolios", portfolioHandler.Create)
	r.Delete("/portfolios/{id}", portfolioHandler.Delete)
	r.Post("/portfolios/{id}/refresh", portfolioHandler.Refresh)
	r.Get("/portfolios/{id}/snapshot", portfolioHandler.Snapshot)
	r.Get("/portfolios/{id}/history", portfolioHandler.History)
	r.Get("/readings", portfolioHandler.Readings)
	r.Get("/notifications", notificationHandler.List)
	r.Post("/notifications/{id}/dismiss", notificationHandler.Dismiss)

	return &testAPI{router: r, fetcher: fetcher, coord: coord, notifs: notifs}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}

func TestCreatePortfolio(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, "POST", "/portfolios", map[string]any{
		"portfolio_id": 111,
		"display_name": "Long Term",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	cfg := decodeBody[models.PortfolioConfig](t, rec)
	if cfg.PortfolioID != 111 || cfg.NormalizedName != "long_term" {
		t.Errorf("created config = %+v", cfg)
	}
	if cfg.Schedule.WeekdayInterval != models.DefaultWeekdayInterval {
		t.Errorf("WeekdayInterval = %d, want default", cfg.Schedule.WeekdayInterval)
	}
}

func TestCreatePortfolio_Conflict(t *testing.T) {
	api := newTestAPI(t)

	body := map[string]any{"portfolio_id": 111, "display_name": "Long Term"}
	if rec := api.do(t, "POST", "/portfolios", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", rec.Code)
	}
	rec := api.do(t, "POST", "/portfolios", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}
	resp := decodeBody[map[string]string](t, rec)
	if resp["kind"] != "conflict" {
		t.Errorf("error kind = %q, want conflict", resp["kind"])
	}
}

func TestCreatePortfolio_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing id", map[string]any{"display_name": "Long Term"}},
		{"missing name", map[string]any{"portfolio_id": 111}},
		{"unknown field", map[string]any{"portfolio_id": 111, "display_name": "X", "bogus": true}},
		{"bad schedule", map[string]any{
			"portfolio_id": 111,
			"display_name": "Long Term",
			"schedule": map[string]any{
				"weekday_interval": 0, "weekday_start": 9, "weekday_end": 21,
				"night_update": "22:05", "morning_update": "04:00",
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, "POST", "/portfolios", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRefreshAndSnapshot(t *testing.T) {
	api := newTestAPI(t)
	api.fetcher.set(111, &models.PortfolioSnapshot{
		PortfolioID:     111,
		InvestedCapital: 15000,
		OpenPL:          1250,
		Currency:        "EUR",
		FetchedAt:       time.Now(),
	}, nil)

	api.do(t, "POST", "/portfolios", map[string]any{"portfolio_id": 111, "display_name": "Long Term"})

	// No snapshot before the first successful fetch.
	if rec := api.do(t, "GET", "/portfolios/111/snapshot", nil); rec.Code != http.StatusNotFound {
		t.Errorf("snapshot before fetch status = %d, want 404", rec.Code)
	}

	rec := api.do(t, "POST", "/portfolios/111/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", rec.Code, rec.Body.String())
	}
	snap := decodeBody[models.PortfolioSnapshot](t, rec)
	if snap.InvestedCapital != 15000 {
		t.Errorf("InvestedCapital = %v, want 15000", snap.InvestedCapital)
	}

	rec = api.do(t, "GET", "/portfolios/111/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	snap = decodeBody[models.PortfolioSnapshot](t, rec)
	if snap.OpenPL != 1250 {
		t.Errorf("OpenPL = %v, want 1250", snap.OpenPL)
	}

	// History records the manual fetch.
	rec = api.do(t, "GET", "/portfolios/111/history", nil)
	records := decodeBody[[]models.FetchRecord](t, rec)
	if len(records) != 1 || records[0].TriggeredBy != models.TriggerManual {
		t.Errorf("history = %+v, want one manual record", records)
	}
}

func TestRefresh_UntrackedPortfolio(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, "POST", "/portfolios/999/refresh", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := api.do(t, "POST", "/portfolios/banana/refresh", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id status = %d, want 400", rec.Code)
	}
}

func TestDeletePortfolio(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, "POST", "/portfolios", map[string]any{"portfolio_id": 111, "display_name": "Long Term"})

	if rec := api.do(t, "DELETE", "/portfolios/111", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := api.do(t, "DELETE", "/portfolios/111", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestReadings(t *testing.T) {
	api := newTestAPI(t)
	api.fetcher.set(111, &models.PortfolioSnapshot{
		PortfolioID: 111, InvestedCapital: 15000, Currency: "EUR", FetchedAt: time.Now(),
	}, nil)

	api.do(t, "POST", "/portfolios", map[string]any{"portfolio_id": 111, "display_name": "Long Term"})
	api.do(t, "POST", "/portfolios", map[string]any{"portfolio_id": 222, "display_name": "No Data Yet"})
	api.do(t, "POST", "/portfolios/111/refresh", nil)

	rec := api.do(t, "GET", "/readings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readings status = %d", rec.Code)
	}
	readings := decodeBody[[]coordinator.Reading](t, rec)
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1 (no snapshot yet for 222)", len(readings))
	}
	if readings[0].Name != "long_term" {
		t.Errorf("Name = %q, want long_term", readings[0].Name)
	}
}

func TestListPortfolios(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, "POST", "/portfolios", map[string]any{"portfolio_id": 111, "display_name": "Long Term"})

	rec := api.do(t, "GET", "/portfolios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	statuses := decodeBody[[]coordinator.PortfolioStatus](t, rec)
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	if statuses[0].Config.PortfolioID != 111 {
		t.Errorf("status = %+v", statuses[0])
	}
	if statuses[0].Schedule.State == "" {
		t.Error("scheduler state missing from status")
	}
}

func TestNotifications_ListAndDismiss(t *testing.T) {
	api := newTestAPI(t)
	id, err := api.notifs.Create(111, "invalid_credentials", "provider rejected credentials")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec := api.do(t, "GET", "/notifications", nil)
	notifications := decodeBody[[]models.Notification](t, rec)
	if len(notifications) != 1 || notifications[0].Kind != "invalid_credentials" {
		t.Fatalf("notifications = %+v", notifications)
	}

	path := fmt.Sprintf("/notifications/%d/dismiss", id)
	if rec := api.do(t, "POST", path, nil); rec.Code != http.StatusNoContent {
		t.Errorf("dismiss status = %d, want 204", rec.Code)
	}
	if rec := api.do(t, "POST", path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second dismiss status = %d, want 404", rec.Code)
	}

	rec = api.do(t, "GET", "/notifications", nil)
	notifications = decodeBody[[]models.Notification](t, rec)
	if len(notifications) != 0 {
		t.Errorf("notifications after dismiss = %+v, want none", notifications)
	}
}

// newCredentialsEnv wires the credentials handler against an httptest
// provider and a temporary database.
func newCredentialsEnv(t *testing.T, provider http.Handler) (*chi.Mux, *repository.CredentialsRepository) {
	t.Helper()
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	credsRepo := repository.NewCredentialsRepository(db)
	tokenRepo := repository.NewProviderSessionRepository(db)
	encryptor, err := secrets.NewEncryptor("this-is-a-valid-32-character-key")
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	client := investing.NewClient(server.URL)
	sessions := session.NewManager(client, func(ctx context.Context) (session.Credentials, error) {
		return session.Credentials{}, session.ErrNoCredentials
	})

	h := NewCredentialsHandler(client, credsRepo, tokenRepo, sessions, encryptor, "test-seed")
	r := chi.NewRouter()
	r.Post("/credentials", h.Save)
	r.Get("/credentials", h.Status)
	return r, credsRepo
}

func TestSaveCredentials_ValidatesWithProvider(t *testing.T) {
	router, credsRepo := newCredentialsEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"system": {"status": "ok"}, "data": {"token": "tok-1", "user_email": "user@example.com"}}`))
	}))

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(map[string]string{"email": "user@example.com", "password": "hunter2"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/credentials", &buf))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := credsRepo.Get()
	if err != nil || stored == nil {
		t.Fatalf("Get() = %v, %v", stored, err)
	}
	if stored.Email != "user@example.com" {
		t.Errorf("Email = %q", stored.Email)
	}
	if string(stored.PasswordCiphertext) == "hunter2" {
		t.Error("password stored in the clear")
	}
	if len(stored.UDID) != 16 {
		t.Errorf("UDID = %q, want 16 hex chars", stored.UDID)
	}
}

func TestSaveCredentials_RejectedByProvider(t *testing.T) {
	router, credsRepo := newCredentialsEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"system": {"status": "ok"}, "data": {"errors": [{"fieldError": "Email or password is incorrect"}]}}`))
	}))

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(map[string]string{"email": "user@example.com", "password": "wrong"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/credentials", &buf))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if stored, _ := credsRepo.Get(); stored != nil {
		t.Error("rejected credentials must not be stored")
	}
}

func TestSaveCredentials_BadEmail(t *testing.T) {
	router, _ := newCredentialsEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be contacted for an invalid email")
	}))

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(map[string]string{"email": "not-an-email", "password": "pw"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/credentials", &buf))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCredentialsStatus_Unconfigured(t *testing.T) {
	router, _ := newCredentialsEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/credentials", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Configured   bool   `json:"configured"`
		SessionState string `json:"session_state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Configured {
		t.Error("Configured = true on empty database")
	}
	if resp.SessionState == "" {
		t.Error("SessionState missing")
	}
}
