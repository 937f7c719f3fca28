package publish

import (
	"context"
	"errors"
	"fmt"

	pperrors "git.home.luguber.info/inful/pagepub/internal/errors"
	"git.home.luguber.info/inful/pagepub/internal/forge"
	"git.home.luguber.info/inful/pagepub/internal/logfields"
)

// ensureRepository fetches the named collection, creating it when absent.
// Creation races are expected under concurrent same-name publishes: a
// duplicate-create response means another publisher won, so we re-fetch
// instead of failing. Returns whether this call performed the creation.
func (p *Pipeline) ensureRepository(ctx context.Context, task Task) (*forge.Repository, bool, error) {
	repo, err := p.forge.GetRepository(ctx, p.opts.Owner, task.Name)
	if err == nil {
		return repo, false, nil
	}
	if !errors.Is(err, forge.ErrNotFound) {
		return nil, false, err
	}

	description := "Generated app for task: " + task.Name
	repo, err = p.forge.CreateRepository(ctx, task.Name, description, false)
	if err == nil {
		p.logger.Info("repository created", logfields.Task(task.Name))
		return repo, true, nil
	}
	if !errors.Is(err, forge.ErrAlreadyExists) {
		return nil, false, err
	}

	// Lost the creation race; the repository exists now.
	repo, err = p.forge.GetRepository(ctx, p.opts.Owner, task.Name)
	if err != nil {
		return nil, false, fmt.Errorf("repository vanished after duplicate-create: %w", err)
	}
	p.logger.Info("repository created concurrently, reusing", logfields.Task(task.Name))
	return repo, false, nil
}

// upsertDocument lands the document at the index path using optimistic
// concurrency: read the current version token, then update conditionally on
// it. A missing document switches to an unconditional create; a
// duplicate-create or stale-token response means a concurrent writer raced
// us, so we wait briefly and re-read. Exhausting the retry budget is fatal;
// the write is never silently dropped.
func (p *Pipeline) upsertDocument(ctx context.Context, task Task, document string) error {
	path := p.opts.IndexPath
	message := fmt.Sprintf("Deploy app for round %d", task.Round)
	policy := p.upsertPolicy()
	content := []byte(document)

	for attempt := 1; attempt <= p.opts.UpsertMaxAttempts; attempt++ {
		existing, err := p.forge.GetFile(ctx, p.opts.Owner, task.Name, path, p.opts.Branch)
		switch {
		case err == nil:
			err = p.forge.UpdateFile(ctx, p.opts.Owner, task.Name, path, p.opts.Branch, message, existing.SHA, content)
		case errors.Is(err, forge.ErrNotFound):
			err = p.forge.CreateFile(ctx, p.opts.Owner, task.Name, path, p.opts.Branch, "Add "+path, content)
		}

		switch {
		case err == nil:
			p.logger.Info("document upserted",
				logfields.Task(task.Name),
				logfields.Path(path),
				logfields.Attempt(attempt))
			return nil
		case errors.Is(err, forge.ErrConflict), errors.Is(err, forge.ErrAlreadyExists):
			// A concurrent writer moved the version token between our
			// read and write. Let it settle, then re-read.
			if attempt < p.opts.UpsertMaxAttempts {
				p.metrics.IncUpsertRetry()
				p.logger.Warn("concurrent write detected, retrying upsert",
					logfields.Task(task.Name),
					logfields.Path(path),
					logfields.Attempt(attempt))
				p.sleep(policy.Delay(attempt))
			}
		default:
			return err
		}
	}

	p.metrics.IncUpsertExhausted()
	return pperrors.UpsertExhausted(path, p.opts.UpsertMaxAttempts)
}
