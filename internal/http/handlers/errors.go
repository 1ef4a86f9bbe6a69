package handlers

import (
	"errors"
	"net/http"

	"genstudio/internal/domain"
	"genstudio/internal/ledger"
	"genstudio/internal/middleware"
)

type errorResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	Moderation      bool   `json:"moderation,omitempty"`
	JobID           string `json:"job_id,omitempty"`
	CreditsRefunded *bool  `json:"credits_refunded,omitempty"`
}

var localized = map[string]map[string]string{
	"moderation_blocked": {
		"en": "The provider declined this request on content-safety grounds. Try rephrasing the prompt or using different images.",
		"id": "Penyedia menolak permintaan ini karena kebijakan keamanan konten. Coba ubah prompt atau gunakan gambar lain.",
	},
	"insufficient_credits": {
		"en": "You do not have enough credits for this request.",
		"id": "Kredit Anda tidak cukup untuk permintaan ini.",
	},
}

func message(code, locale, fallback string) string {
	if msgs, ok := localized[code]; ok {
		if msg, ok := msgs[locale]; ok {
			return msg
		}
		return msgs["en"]
	}
	return fallback
}

// classify maps err onto its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusBadRequest, "insufficient_credits"
	case errors.Is(err, domain.ErrModerationBlocked):
		return http.StatusUnprocessableEntity, "moderation_blocked"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway, "provider_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err. job, when set, is the failed job behind err.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error, job *domain.Job) {
	status, code := classify(err)
	resp := errorResponse{
		Error:      code,
		Message:    message(code, middleware.LocaleFromContext(r.Context()), domain.SanitizeError(err)),
		Moderation: code == "moderation_blocked",
	}
	if job != nil {
		resp.JobID = job.ID
		refunded := ledger.Refunded(err)
		resp.CreditsRefunded = &refunded
	}
	if status >= http.StatusInternalServerError {
		a.logger().Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
	}
	a.json(w, status, resp)
}
