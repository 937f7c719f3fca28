package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	pperrors "git.home.luguber.info/inful/pagepub/internal/errors"
	"git.home.luguber.info/inful/pagepub/internal/events"
	"git.home.luguber.info/inful/pagepub/internal/evidence"
	"git.home.luguber.info/inful/pagepub/internal/generate"
	"git.home.luguber.info/inful/pagepub/internal/logfields"
	"git.home.luguber.info/inful/pagepub/internal/publish"
	"git.home.luguber.info/inful/pagepub/internal/version"
)

func versionString() string { return version.Version }

// handlePublish drives the full request flow: validate, assemble revision
// context, generate, publish, then kick off the detached notification and
// evidence submissions and answer the caller.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorAdapter.WriteErrorResponse(w, pperrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", http.MethodPost))
		return
	}

	req, err := decodePublishRequest(r)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	requestID := RequestIDFromContext(r.Context())
	log := s.logger.With(
		logfields.RequestID(requestID),
		logfields.Task(req.Task),
		logfields.Round(req.Round))

	if err := req.validate(s.cfg.Server.Secret, log); err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}
	log.Info("processing publish request", slog.String("email", req.Email))

	// Revision rounds build on the previously published document; absence
	// is fine and means a fresh generation.
	existing := ""
	if req.Round > 1 {
		if doc, ok := s.deps.Pipeline.FetchExisting(r.Context(), req.Task); ok {
			existing = doc
			log.Info("fetched document from previous round", logfields.Step("fetch_existing"))
		}
	}

	files, err := s.deps.Generator.GenerateApp(r.Context(), generate.Request{
		Brief:        req.Brief,
		Checks:       req.Checks,
		Attachments:  req.Attachments,
		ExistingCode: existing,
		Round:        req.Round,
	})
	if err != nil {
		s.finishError(w, r, req, requestID, err)
		return
	}

	result, err := s.deps.Pipeline.Publish(r.Context(), publish.Task{
		Name:     req.Task,
		Round:    req.Round,
		Document: generate.IndexDocument(files),
		Brief:    req.Brief,
	})
	if err != nil {
		s.finishError(w, r, req, requestID, err)
		return
	}

	s.refreshReadme(r.Context(), req, result, log)

	resp := PublishResponse{
		Status:    "success",
		RepoURL:   result.RepoURL,
		PagesURL:  result.PagesURL,
		CommitSHA: result.CommitSHA,
		Warning:   result.Warning,
	}

	// The caller-visible result never waits on notification or evidence.
	go s.notifyEvaluation(req, result, log)
	s.deps.Evidence.Submit(evidence.Record{
		RequestID: requestID,
		Task:      req.Task,
		Round:     req.Round,
		Email:     req.Email,
		Nonce:     req.Nonce,
		RemoteIP:  r.RemoteAddr,
		URL:       r.URL.String(),
		Status:    "success",
		RepoURL:   result.RepoURL,
		PagesURL:  result.PagesURL,
		CommitSHA: result.CommitSHA,
	})
	s.deps.Events.Publish(events.PublishEvent{
		RequestID: requestID,
		Task:      req.Task,
		Round:     req.Round,
		Status:    "success",
		RepoURL:   result.RepoURL,
		PagesURL:  result.PagesURL,
		CommitSHA: result.CommitSHA,
	})

	s.writeJSON(w, http.StatusOK, resp)
}

// decodePublishRequest parses the JSON body and records which top-level keys
// were present so validation can tell a missing field from a zero value.
func decodePublishRequest(r *http.Request) (*PublishRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, pperrors.ValidationError("request body is not a JSON object").
			WithContext("reason", err.Error())
	}
	if len(raw) == 0 {
		return nil, pperrors.ValidationError("no JSON data provided")
	}

	req := &PublishRequest{rawFields: make(map[string]struct{}, len(raw))}
	for key := range raw {
		req.rawFields[key] = struct{}{}
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return nil, pperrors.InternalError("request re-encoding failed", err)
	}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, pperrors.ValidationError("malformed request field").
			WithContext("reason", err.Error())
	}
	return req, nil
}

// refreshReadme regenerates the README after a successful publish.
// Best-effort: generation or upload trouble is logged and swallowed.
func (s *Server) refreshReadme(ctx context.Context, req *PublishRequest, result *publish.Result, log *slog.Logger) {
	content, err := s.deps.Generator.GenerateReadme(ctx, req.Task, req.Brief, result.RepoURL, result.PagesURL)
	if err != nil {
		log.Warn("README generation failed", logfields.Step("update_readme"), logfields.Error(err))
		return
	}
	s.deps.Pipeline.UpdateReadme(ctx, req.Task, content)
}

// notifyEvaluation runs detached from the request; it gets its own timeout
// because the request context dies when the response is written.
func (s *Server) notifyEvaluation(req *PublishRequest, result *publish.Result, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	delivered := s.deps.Notifier.Notify(ctx, req.EvaluationURL, EvaluationPayload{
		Email:     req.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   result.RepoURL,
		CommitSHA: result.CommitSHA,
		PagesURL:  result.PagesURL,
	})
	if !delivered {
		log.Warn("evaluation callback not delivered", logfields.URL(req.EvaluationURL))
	}
}

// finishError reports a pipeline or generation failure: evidence and event
// records are still written so failed publishes are auditable.
func (s *Server) finishError(w http.ResponseWriter, r *http.Request, req *PublishRequest, requestID string, err error) {
	s.deps.Evidence.Submit(evidence.Record{
		RequestID: requestID,
		Task:      req.Task,
		Round:     req.Round,
		Email:     req.Email,
		Nonce:     req.Nonce,
		RemoteIP:  r.RemoteAddr,
		URL:       r.URL.String(),
		Status:    "error",
		Error:     err.Error(),
	})
	s.deps.Events.Publish(events.PublishEvent{
		RequestID: requestID,
		Task:      req.Task,
		Round:     req.Round,
		Status:    "error",
		Error:     err.Error(),
	})
	s.errorAdapter.WriteErrorResponse(w, err)
}
