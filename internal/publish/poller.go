package publish

import (
	"context"
	"net/http"

	"git.home.luguber.info/inful/pagepub/internal/logfields"
	"git.home.luguber.info/inful/pagepub/internal/metrics"
)

// awaitLive requests a fresh build and polls the public URL until it serves a
// success response or the timeout elapses. The build trigger is
// fire-and-forget: a failure there is non-fatal because the host schedules
// builds automatically. Network errors during polling mean "still building";
// only the timeout is terminal. This call blocks for up to the timeout, which
// is the contract: the caller needs a final boolean.
func (p *Pipeline) awaitLive(ctx context.Context, task Task, url string) bool {
	log := p.logger.With(logfields.Task(task.Name), logfields.Step(stagePoll), logfields.URL(url))
	started := p.now()

	if err := p.forge.RequestPagesBuild(ctx, p.opts.Owner, task.Name); err != nil {
		log.Warn("build request failed, relying on automatic build", logfields.Error(err))
	}

	// Builds take a while to even begin; skip the pointless early checks.
	if grace := min(p.opts.PollGrace, p.opts.PollTimeout); grace > 0 {
		p.sleep(grace)
	}

	for {
		elapsed := p.now().Sub(started)
		if elapsed >= p.opts.PollTimeout {
			break
		}

		if p.probe(ctx, url) {
			p.metrics.ObserveStageDuration(stagePoll, p.now().Sub(started))
			p.metrics.IncStageResult(stagePoll, metrics.ResultSuccess)
			log.Info("site is live", logfields.DurationMS(float64(p.now().Sub(started).Milliseconds())))
			return true
		}

		remaining := p.opts.PollTimeout - p.now().Sub(started)
		if remaining <= 0 {
			break
		}
		p.sleep(min(p.opts.PollInterval, remaining))
	}

	p.metrics.IncStageResult(stagePoll, metrics.ResultWarning)
	log.Warn("site did not go live before timeout")
	return false
}

// probe performs one liveness check. Any transport error or non-2xx status
// counts as not-yet-live.
func (p *Pipeline) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
