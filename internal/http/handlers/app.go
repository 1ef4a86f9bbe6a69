package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
	"genstudio/internal/queue"
	"genstudio/internal/status"
	"genstudio/internal/textgen"
)

// ImageGenerator runs an image request synchronously.
type ImageGenerator interface {
	Generate(ctx context.Context, ownerID string, req generation.Request) (*domain.Job, error)
}

// TextSubmitter enqueues text letters and reports queue depth.
type TextSubmitter interface {
	Submit(ctx context.Context, ownerID string, req textgen.LetterRequest) (*domain.Job, error)
	QueueStatus(ctx context.Context) (queue.Status, error)
}

// BalanceReader reads a credit balance.
type BalanceReader interface {
	Balance(ctx context.Context, ownerID string) (int64, error)
}

// App carries the collaborators every handler needs.
type App struct {
	Images ImageGenerator
	Texts  TextSubmitter
	Jobs   domain.JobRepository
	Status status.Store
	Ledger BalanceReader
	Logger *infra.Logger
	// Checks are run by Health, keyed by dependency name.
	Checks map[string]func(ctx context.Context) error
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) logger() *infra.Logger {
	return infra.OrDiscard(a.Logger)
}

func (a *App) currentOwnerID(r *http.Request) string {
	return middleware.OwnerIDFromContext(r.Context())
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("invalid payload")
	}
	return nil
}

// Reference images may arrive as data URLs, so the body limit is generous.
const maxBodyBytes = 25 << 20
