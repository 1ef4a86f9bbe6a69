package handlers

import (
	"net/http"

	"genstudio/internal/generation"
)

// ImagesGenerate runs the image request inside this request and answers with
// the completed job.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req generation.Request
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	job, err := a.Images.Generate(r.Context(), a.currentOwnerID(r), req)
	if err != nil {
		a.writeError(w, r, err, job)
		return
	}
	a.json(w, http.StatusOK, newJobResponse(job))
}
