package domain

import "time"

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindTextLetter JobKind = "text_letter"
	JobKindImage      JobKind = "image"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Predecessors lists the statuses a job may hold immediately before moving to s.
// A job may fail straight from pending when work dies before it was picked up.
func (s JobStatus) Predecessors() []JobStatus {
	switch s {
	case JobStatusProcessing:
		return []JobStatus{JobStatusPending}
	case JobStatusCompleted:
		return []JobStatus{JobStatusProcessing}
	case JobStatusFailed:
		return []JobStatus{JobStatusPending, JobStatusProcessing}
	default:
		return nil
	}
}

// CanTransition reports whether from -> to is a forward lifecycle move.
func CanTransition(from, to JobStatus) bool {
	for _, p := range to.Predecessors() {
		if p == from {
			return true
		}
	}
	return false
}

// JobPayload captures the request that produced a job.
type JobPayload struct {
	Prompt          string   `json:"prompt"`
	Mode            string   `json:"mode,omitempty"`
	Tier            string   `json:"tier,omitempty"`
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
	InputImage      string   `json:"input_image,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
	Tone            string   `json:"tone,omitempty"`
	Recipient       string   `json:"recipient,omitempty"`
}

// Job ties a credit reservation to a generation call and its result.
type Job struct {
	ID              string
	OwnerID         string
	Kind            JobKind
	Payload         JobPayload
	Status          JobStatus
	CreditsReserved int64
	OutputURL       *string
	ResultText      *string
	ErrorMessage    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JobPatch is a partial update. Nil fields are left untouched.
type JobPatch struct {
	Status          *JobStatus
	CreditsReserved *int64
	OutputURL       *string
	ResultText      *string
	ErrorMessage    *string
}

// Apply mutates j with p after checking the status transition.
func (j *Job) Apply(p JobPatch, now time.Time) error {
	if p.Status != nil && *p.Status != j.Status {
		if !CanTransition(j.Status, *p.Status) {
			return ErrInvalidTransition
		}
		j.Status = *p.Status
	}
	if p.CreditsReserved != nil {
		j.CreditsReserved = *p.CreditsReserved
	}
	if p.OutputURL != nil {
		j.OutputURL = p.OutputURL
	}
	if p.ResultText != nil {
		j.ResultText = p.ResultText
	}
	if p.ErrorMessage != nil {
		j.ErrorMessage = p.ErrorMessage
	}
	j.UpdatedAt = now
	return nil
}

// StatusPatch is shorthand for a patch that only moves the status.
func StatusPatch(s JobStatus) JobPatch {
	return JobPatch{Status: &s}
}

// CompletedPatch marks a job completed with its output.
func CompletedPatch(outputURL, resultText string) JobPatch {
	s := JobStatusCompleted
	p := JobPatch{Status: &s}
	if outputURL != "" {
		p.OutputURL = &outputURL
	}
	if resultText != "" {
		p.ResultText = &resultText
	}
	return p
}

// FailedPatch marks a job failed with a sanitized message. When refunded is
// true the reserved credits are rewritten to zero.
func FailedPatch(message string, refunded bool) JobPatch {
	s := JobStatusFailed
	p := JobPatch{Status: &s, ErrorMessage: &message}
	if refunded {
		var zero int64
		p.CreditsReserved = &zero
	}
	return p
}
