package publish

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/pagepub/internal/forge"
	"git.home.luguber.info/inful/pagepub/internal/logfields"
	"git.home.luguber.info/inful/pagepub/internal/metrics"
)

// convergePages reconciles the collection's hosting configuration toward the
// desired branch and path. Hosting is best-effort: the upserted document is
// the durable source of truth, so everything short of a bad credential
// degrades to configured=false instead of failing the publish.
//
// Outcomes per attempt:
//   - absent  -> create; conflict means another creator won (success)
//   - present -> patch (idempotent); not-found means it was deleted between
//     check and patch, so the next attempt loops back to create
//   - permission denied is terminal: hosting may be disabled for the account
//   - unauthorized is fatal: the credential itself is bad
//   - anything else burns one attempt and retries after a fixed delay
func (p *Pipeline) convergePages(ctx context.Context, task Task) (bool, error) {
	log := p.logger.With(logfields.Task(task.Name), logfields.Step(stagePages))
	policy := p.pagesPolicy()

	for attempt := 1; attempt <= p.opts.PagesMaxAttempts; attempt++ {
		_, err := p.forge.GetPages(ctx, p.opts.Owner, task.Name)
		switch {
		case err == nil:
			err = p.forge.UpdatePages(ctx, p.opts.Owner, task.Name, p.opts.Branch, "/")
			switch {
			case err == nil:
				p.metrics.IncConvergence(metrics.ConvergenceConfigured)
				log.Info("hosting configuration confirmed", logfields.Attempt(attempt))
				return true, nil
			case errors.Is(err, forge.ErrNotFound):
				// Deleted between check and patch; recreate on the next pass.
				log.Warn("hosting config vanished before patch", logfields.Attempt(attempt))
			case errors.Is(err, forge.ErrPermissionDenied):
				p.metrics.IncConvergence(metrics.ConvergenceDenied)
				log.Warn("hosting update denied, proceeding without hosting")
				return false, nil
			case errors.Is(err, forge.ErrUnauthorized):
				return false, err
			default:
				log.Warn("hosting update failed", logfields.Attempt(attempt), logfields.Error(err))
			}

		case errors.Is(err, forge.ErrNotFound):
			err = p.forge.CreatePages(ctx, p.opts.Owner, task.Name, p.opts.Branch, "/")
			switch {
			case err == nil:
				p.metrics.IncConvergence(metrics.ConvergenceConfigured)
				log.Info("hosting configuration created", logfields.Attempt(attempt))
				return true, nil
			case errors.Is(err, forge.ErrConflict):
				// Another creator won the race; the site exists.
				p.metrics.IncConvergence(metrics.ConvergenceConfigured)
				log.Info("hosting configured by concurrent publisher", logfields.Attempt(attempt))
				return true, nil
			case errors.Is(err, forge.ErrPermissionDenied):
				p.metrics.IncConvergence(metrics.ConvergenceDenied)
				log.Warn("hosting creation denied, proceeding without hosting")
				return false, nil
			case errors.Is(err, forge.ErrUnauthorized):
				return false, err
			default:
				log.Warn("hosting creation failed", logfields.Attempt(attempt), logfields.Error(err))
			}

		case errors.Is(err, forge.ErrPermissionDenied):
			p.metrics.IncConvergence(metrics.ConvergenceDenied)
			log.Warn("hosting status check denied, proceeding without hosting")
			return false, nil
		case errors.Is(err, forge.ErrUnauthorized):
			return false, err
		default:
			log.Warn("hosting status check failed", logfields.Attempt(attempt), logfields.Error(err))
		}

		if attempt < p.opts.PagesMaxAttempts {
			p.sleep(policy.Delay(attempt))
		}
	}

	p.metrics.IncConvergence(metrics.ConvergenceUnconfigured)
	log.Warn("hosting configuration did not converge, content remains published")
	return false, nil
}
