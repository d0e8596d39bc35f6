package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/forkcast/internal/config"
	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/pkg/models"
)

// testService builds a Service over a temporary database in dry-run mode.
func testService(t *testing.T, mutate func(*config.Config)) (*Service, *gormdb.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "forkcast_server_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store, err := gormdb.NewStore(gormdb.Config{
		DSN:      filepath.Join(tmpDir, "test.db"),
		MaxConns: 4,
		LogLevel: logger.Silent,
	})
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("NewStore failed: %v", err)
	}

	cfg := config.Default()
	cfg.SeedPath = filepath.Join(tmpDir, "seed.csv")
	if mutate != nil {
		mutate(cfg)
	}

	svc := NewService(cfg, store, nil)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return svc, store, cleanup
}

func seedEntries(t *testing.T, store *gormdb.Store, entries map[string]models.DietLabel) {
	t.Helper()
	cs := gormdb.NewCatalogStore(store.DB)
	for name, diet := range entries {
		_, _, err := cs.Upsert(context.Background(), name, diet, models.SourceStatic, nil)
		require.NoError(t, err)
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	svc, _, cleanup := testService(t, nil)
	defer cleanup()

	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestHandleCatalogLookup(t *testing.T) {
	svc, store, cleanup := testService(t, nil)
	defer cleanup()

	seedEntries(t, store, map[string]models.DietLabel{"hummus": models.DietVegan})

	// Raw names normalize before lookup.
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog?name=HUMMUS", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "hummus", body["food_name"])
	assert.Equal(t, "vegan", body["diet"])

	rr = httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog?name=bibimbap", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleSimulateDryRun(t *testing.T) {
	svc, store, cleanup := testService(t, nil)
	defer cleanup()

	seedEntries(t, store, map[string]models.DietLabel{
		"banana":      models.DietVegan,
		"hummus":      models.DietVegan,
		"lentil soup": models.DietVegan,
	})

	req := httptest.NewRequest(http.MethodPost, "/ops/simulate",
		strings.NewReader(`{"runs": 2, "run_id": "api-run"}`))
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, "api-run", summary["run_id"])
	assert.EqualValues(t, 2, summary["users"])
	assert.EqualValues(t, 0, summary["llm_input_tokens"])
}

func TestHandleSimulateInvalidBody(t *testing.T) {
	svc, _, cleanup := testService(t, nil)
	defer cleanup()

	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ops/simulate",
		strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ops/simulate",
		strings.NewReader(`{"runs": -1}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleSeed(t *testing.T) {
	svc, _, cleanup := testService(t, nil)
	defer cleanup()

	require.NoError(t, os.WriteFile(svc.cfg.SeedPath,
		[]byte("food_name,diet,source\nbanana,vegan,static\npho,omnivore,static\n"), 0o644))

	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ops/seed", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 2, decodeBody(t, rr)["inserted"])
}

func TestHandleSeedInvalidRow(t *testing.T) {
	svc, store, cleanup := testService(t, nil)
	defer cleanup()

	require.NoError(t, os.WriteFile(svc.cfg.SeedPath,
		[]byte("food_name,diet,source\n,vegan,static\n"), 0o644))

	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ops/seed", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	count, err := gormdb.NewCatalogStore(store.DB).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReports(t *testing.T) {
	svc, store, cleanup := testService(t, nil)
	defer cleanup()

	rs := gormdb.NewRunStore(store.DB)
	user, err := rs.CreateUser(context.Background(), "report-run")
	require.NoError(t, err)
	require.NoError(t, rs.SetUserDiet(context.Background(), user.ID, models.DietVegan))

	in, out := int64(100), int64(20)
	cost := 0.027
	_, err = rs.CreateTurn(context.Background(), gormdb.TurnRecord{
		UserID: user.ID, Role: models.RoleAsk, Model: "gpt-4o-mini",
		PromptTokens: &in, CompletionTokens: &out, EstimatedCostUSD: &cost,
		RunID: "report-run",
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/diets?run_id=report-run", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	diets := decodeBody(t, rr)["diets"].([]interface{})
	require.Len(t, diets, 1)
	row := diets[0].(map[string]interface{})
	assert.Equal(t, "vegan", row["diet"])
	assert.EqualValues(t, 1, row["count"])

	rr = httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/costs?run_id=report-run", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	totals := decodeBody(t, rr)
	assert.EqualValues(t, 100, totals["prompt_tokens"])
	assert.EqualValues(t, 120, totals["total_tokens"])
	assert.EqualValues(t, 1, totals["turns"])
}

func TestBearerAuth(t *testing.T) {
	svc, store, cleanup := testService(t, func(cfg *config.Config) {
		cfg.AuthToken = "sekret"
	})
	defer cleanup()

	seedEntries(t, store, map[string]models.DietLabel{
		"banana": models.DietVegan,
		"hummus": models.DietVegan,
		"pho":    models.DietOmnivore,
	})

	// Missing and wrong tokens are rejected.
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ops/simulate",
		strings.NewReader(`{"runs": 1}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/ops/simulate", strings.NewReader(`{"runs": 1}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/ops/simulate", strings.NewReader(`{"runs": 1}`))
	req.Header.Set("Authorization", "Bearer sekret")
	rr = httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Read-only routes stay open.
	rr = httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
