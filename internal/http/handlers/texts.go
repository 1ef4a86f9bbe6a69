package handlers

import (
	"net/http"

	"genstudio/internal/domain"
	"genstudio/internal/queue"
	"genstudio/internal/textgen"
)

type textSubmitResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
	Queue  queue.Status     `json:"queue"`
}

func (a *App) TextsSubmit(w http.ResponseWriter, r *http.Request) {
	var req textgen.LetterRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	job, err := a.Texts.Submit(r.Context(), a.currentOwnerID(r), req)
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	qs, err := a.Texts.QueueStatus(r.Context())
	if err != nil {
		a.logger().Warn().Err(err).Str("job_id", job.ID).Msg("http: queue status failed")
	}
	a.json(w, http.StatusAccepted, textSubmitResponse{JobID: job.ID, Status: job.Status, Queue: qs})
}

func (a *App) QueueStatus(w http.ResponseWriter, r *http.Request) {
	qs, err := a.Texts.QueueStatus(r.Context())
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, qs)
}
