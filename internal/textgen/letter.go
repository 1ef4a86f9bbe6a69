package textgen

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"genstudio/internal/domain"
)

const (
	maxPromptRunes = 2000
	maxFieldRunes  = 120
)

// SystemPrompt frames every letter completion.
const SystemPrompt = "You write short personal letters. Answer with the letter body only, " +
	"without a subject line, placeholders or commentary."

// LetterRequest is a text letter submission.
type LetterRequest struct {
	Prompt    string `json:"prompt"`
	Tone      string `json:"tone,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// Validate trims the request and rejects empty or oversized fields.
func (r LetterRequest) Validate() (LetterRequest, error) {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.Tone = strings.TrimSpace(r.Tone)
	r.Recipient = strings.TrimSpace(r.Recipient)
	if r.Prompt == "" {
		return r, domain.Invalid("prompt is required")
	}
	if utf8.RuneCountInString(r.Prompt) > maxPromptRunes {
		return r, domain.Invalid("prompt must be at most %d characters", maxPromptRunes)
	}
	if utf8.RuneCountInString(r.Tone) > maxFieldRunes || utf8.RuneCountInString(r.Recipient) > maxFieldRunes {
		return r, domain.Invalid("tone and recipient must be at most %d characters", maxFieldRunes)
	}
	return r, nil
}

// Payload is the job payload stored for r.
func (r LetterRequest) Payload() domain.JobPayload {
	return domain.JobPayload{Prompt: r.Prompt, Tone: r.Tone, Recipient: r.Recipient}
}

// BuildUserPrompt turns a stored payload into the user message.
func BuildUserPrompt(p domain.JobPayload) string {
	parts := []string{}
	if recipient := strings.TrimSpace(p.Recipient); recipient != "" {
		parts = append(parts, fmt.Sprintf("Write a letter to %s.", recipient))
	} else {
		parts = append(parts, "Write a letter.")
	}
	if tone := strings.TrimSpace(p.Tone); tone != "" {
		parts = append(parts, "Tone: "+tone+".")
	}
	parts = append(parts, "Request: "+strings.TrimSpace(p.Prompt))
	return strings.Join(parts, " ")
}
