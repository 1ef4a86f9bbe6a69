package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
)

type jobResponse struct {
	JobID       string           `json:"job_id"`
	Kind        domain.JobKind   `json:"kind"`
	Status      domain.JobStatus `json:"status"`
	Progress    int              `json:"progress"`
	CreditsUsed int64            `json:"credits_used"`
	OutputURL   *string          `json:"output_url,omitempty"`
	ResultText  *string          `json:"result_text,omitempty"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func newJobResponse(job *domain.Job) jobResponse {
	resp := jobResponse{
		JobID:       job.ID,
		Kind:        job.Kind,
		Status:      job.Status,
		CreditsUsed: job.CreditsReserved,
		OutputURL:   job.OutputURL,
		ResultText:  job.ResultText,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.Status.Terminal() {
		resp.Progress = 100
	}
	return resp
}

// JobStatus returns the caller's job. The advisory progress is merged in only
// when the cached status agrees with the record.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	if job.OwnerID != ownerID {
		a.writeError(w, r, domain.ErrNotFound, nil)
		return
	}

	resp := newJobResponse(job)
	if a.Status != nil && !job.Status.Terminal() {
		entry, ok, err := a.Status.Get(r.Context(), job.ID)
		if err != nil {
			a.logger().Warn().Err(err).Str("job_id", job.ID).Msg("http: status lookup failed")
		} else if ok && entry.Status == job.Status {
			resp.Progress = entry.Progress
		}
	}
	a.json(w, http.StatusOK, resp)
}
