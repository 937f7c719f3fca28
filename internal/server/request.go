package server

import (
	"crypto/subtle"
	"log/slog"

	pperrors "git.home.luguber.info/inful/pagepub/internal/errors"
	"git.home.luguber.info/inful/pagepub/internal/generate"
)

// PublishRequest is the inbound payload of POST /api-endpoint.
type PublishRequest struct {
	Email         string                `json:"email"`
	Secret        string                `json:"secret"`
	Task          string                `json:"task"`
	Round         int                   `json:"round"`
	Nonce         string                `json:"nonce"`
	Brief         string                `json:"brief"`
	Checks        []string              `json:"checks"`
	EvaluationURL string                `json:"evaluation_url"`
	Attachments   []generate.Attachment `json:"attachments"`

	// rawFields tracks which top-level keys were present, so missing
	// fields are distinguishable from zero values.
	rawFields map[string]struct{}
}

func (r *PublishRequest) has(field string) bool {
	_, ok := r.rawFields[field]
	return ok
}

var requiredFields = []string{"email", "secret", "round", "nonce", "brief", "evaluation_url"}

// goodToHaveFields are expected but tolerated when absent; their absence is
// logged so upstream callers can fix their payloads.
var goodToHaveFields = []string{"task", "checks"}

// validate checks field presence, the shared secret, and value sanity.
// The secret comparison is constant-time.
func (r *PublishRequest) validate(secret string, logger *slog.Logger) error {
	for _, field := range goodToHaveFields {
		if !r.has(field) {
			logger.Warn("expected field missing from request", slog.String("field", field))
		}
	}

	for _, field := range requiredFields {
		if !r.has(field) {
			return pperrors.ValidationFailed(field, "missing required field")
		}
	}

	if subtle.ConstantTimeCompare([]byte(r.Secret), []byte(secret)) != 1 {
		return pperrors.New(pperrors.CategoryAuth, pperrors.SeverityWarning, "invalid secret")
	}

	if r.Round < 1 {
		return pperrors.ValidationFailed("round", "must be a positive integer")
	}

	return nil
}
