package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/ledger"
	"genstudio/internal/middleware"
	"genstudio/internal/queue"
	"genstudio/internal/status"
	"genstudio/internal/textgen"
)

const testSecret = "router-test-secret"

type harness struct {
	handler http.Handler
	ledger  *ledger.MemoryStore
	jobs    *repo.MemoryJobRepository
	queue   *queue.Queue
}

func newHarness(t *testing.T, staticDir string) *harness {
	t.Helper()
	jobs := repo.NewMemoryJobRepository()
	store := ledger.NewMemoryStore()
	q := queue.New(queue.NewMemoryListStore())
	st := status.NewMemoryStore(time.Hour, nil)
	texts := textgen.NewService(textgen.ServiceOptions{
		Jobs:     jobs,
		Saga:     ledger.NewSaga(store, nil),
		Queue:    q,
		Status:   st,
		Cost:     1,
		RPMLimit: 10,
	})
	app := &handlers.App{Texts: texts, Jobs: jobs, Status: st, Ledger: store}
	h := NewRouter(app, RouterOptions{
		JWTSecret:     testSecret,
		RateLimit:     100,
		DefaultLocale: "en",
		StaticDir:     staticDir,
		Logger:        *infra.DiscardLogger(),
	})
	return &harness{handler: h, ledger: store, jobs: jobs, queue: q}
}

func (h *harness) do(t *testing.T, method, target, body, owner string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if owner != "" {
		token, err := middleware.SignJWT(testSecret, owner, "en", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, http.MethodGet, "/v1/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, "")
	for _, path := range []string{"/v1/credits", "/v1/queue/status", "/v1/jobs/abc"} {
		rec := h.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestTextSubmitThenPollJob(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	require.NoError(t, h.ledger.Grant(ctx, "owner-1", 5))

	rec := h.do(t, http.MethodPost, "/v1/texts", `{"prompt":"thank the volunteers","tone":"warm"}`, "owner-1")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var submitted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
		Queue  struct {
			Waiting int64 `json:"waiting"`
		} `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	assert.Equal(t, "pending", submitted.Status)
	assert.Equal(t, int64(1), submitted.Queue.Waiting)

	rec = h.do(t, http.MethodGet, "/v1/credits", "", "owner-1")
	assert.JSONEq(t, `{"balance":4}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/v1/jobs/"+submitted.JobID, "", "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var job map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "text_letter", job["kind"])
	assert.Equal(t, float64(1), job["credits_used"])

	rec = h.do(t, http.MethodGet, "/v1/jobs/"+submitted.JobID, "", "owner-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTextSubmitWithoutCredits(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, http.MethodPost, "/v1/texts", `{"prompt":"hello"}`, "broke")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_credits")
	assert.Zero(t, h.jobs.Len())
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "a.png"), []byte("png"), 0o644))
	h := newHarness(t, dir)

	rec := h.do(t, http.MethodGet, "/static/images/a.png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	rec = h.do(t, http.MethodGet, "/static/images/", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
