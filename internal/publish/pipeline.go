// Package publish implements the pipeline that takes a generated document and
// drives the remote collection to a consistent, live state: asset
// externalization, idempotent repository and content upsert under optimistic
// concurrency, hosting-config convergence, and build-availability polling.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/pagepub/internal/config"
	pperrors "git.home.luguber.info/inful/pagepub/internal/errors"
	"git.home.luguber.info/inful/pagepub/internal/forge"
	"git.home.luguber.info/inful/pagepub/internal/logfields"
	"git.home.luguber.info/inful/pagepub/internal/metrics"
	"git.home.luguber.info/inful/pagepub/internal/retry"
)

// Stage names used in step-annotated errors, logs, and metrics.
const (
	stageEnsureRepo = "ensure_repository"
	stageAssets     = "extract_assets"
	stageUpsert     = "upsert_document"
	stagePages      = "converge_pages"
	stagePoll       = "await_live"
)

// Options are the pipeline tuning knobs. Delays are plain durations so tests
// can run with milliseconds; production wiring converts from the
// seconds-granular config via OptionsFromConfig.
type Options struct {
	Owner          string
	Branch         string
	IndexPath      string
	PagesHost      string
	AssetThreshold int

	UpsertMaxAttempts int
	UpsertDelay       time.Duration
	PagesMaxAttempts  int
	PagesDelay        time.Duration
	PollTimeout       time.Duration
	PollInterval      time.Duration
	PollGrace         time.Duration
}

// OptionsFromConfig maps the loaded configuration onto pipeline options.
func OptionsFromConfig(owner string, fc config.ForgeConfig, pc config.PublishConfig) Options {
	return Options{
		Owner:             owner,
		Branch:            pc.Branch,
		IndexPath:         pc.IndexPath,
		PagesHost:         fc.PagesHost,
		AssetThreshold:    pc.AssetThreshold,
		UpsertMaxAttempts: pc.UpsertMaxAttempts,
		UpsertDelay:       pc.UpsertDelay(),
		PagesMaxAttempts:  pc.PagesMaxAttempts,
		PagesDelay:        pc.PagesDelay(),
		PollTimeout:       pc.PollTimeout(),
		PollInterval:      pc.PollInterval(),
		PollGrace:         pc.PollGrace(),
	}
}

// Pipeline orchestrates the publish stages against an injected forge client.
// It holds no per-task state, so one Pipeline serves any number of concurrent
// publishes; same-name races are resolved by the remote host's conditional
// writes plus bounded retry, never by an in-process lock.
type Pipeline struct {
	forge   forge.Client
	opts    Options
	logger  *slog.Logger
	metrics metrics.Recorder

	// httpClient performs public-URL liveness polls.
	httpClient *http.Client

	// sleep is injectable for tests; defaults to time.Sleep.
	sleep func(time.Duration)
	now   func() time.Time
}

// New constructs a pipeline. A nil logger or recorder falls back to a no-op.
func New(client forge.Client, opts Options, logger *slog.Logger, recorder metrics.Recorder) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Pipeline{
		forge:      client,
		opts:       opts,
		logger:     logger,
		metrics:    recorder,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Publish runs the full pipeline for one task. Fatal errors abort at the
// stage they occurred, annotated with the stage name; degradations (hosting
// denied, build never went live, README trouble) surface as warnings on an
// otherwise successful result.
func (p *Pipeline) Publish(ctx context.Context, task Task) (*Result, error) {
	started := p.now()
	log := p.logger.With(logfields.Task(task.Name), logfields.Round(task.Round))

	repo, created, err := p.ensureRepository(ctx, task)
	if err != nil {
		p.metrics.IncStageResult(stageEnsureRepo, metrics.ResultFatal)
		p.metrics.IncPublishOutcome("failed")
		return nil, pperrors.StepFailed(stageEnsureRepo, err)
	}
	p.metrics.IncStageResult(stageEnsureRepo, metrics.ResultSuccess)
	if created {
		p.seedRepository(ctx, task)
	}

	assetsStart := p.now()
	document := p.extractAssets(ctx, task, task.Document)
	p.metrics.ObserveStageDuration(stageAssets, p.now().Sub(assetsStart))

	upsertStart := p.now()
	err = p.upsertDocument(ctx, task, document)
	p.metrics.ObserveStageDuration(stageUpsert, p.now().Sub(upsertStart))
	if err != nil {
		p.metrics.IncStageResult(stageUpsert, metrics.ResultFatal)
		p.metrics.IncPublishOutcome("failed")
		return nil, pperrors.StepFailed(stageUpsert, err)
	}
	p.metrics.IncStageResult(stageUpsert, metrics.ResultSuccess)

	result := &Result{
		RepoURL:   repo.HTMLURL,
		PagesURL:  p.pagesURL(task.Name),
		CommitSHA: p.headRevision(ctx, task.Name, log),
	}

	configured, convErr := p.convergePages(ctx, task)
	result.Configured = configured
	switch {
	case convErr != nil:
		p.metrics.IncPublishOutcome("failed")
		return nil, pperrors.StepFailed(stagePages, convErr)
	case configured:
		p.metrics.IncStageResult(stagePages, metrics.ResultSuccess)
		result.Live = p.awaitLive(ctx, task, result.PagesURL)
		if !result.Live {
			result.Warning = "site did not become live before the poll timeout"
		}
	default:
		p.metrics.IncStageResult(stagePages, metrics.ResultWarning)
		result.Warning = "hosting configuration could not be applied; content is published but not served yet"
	}

	outcome := "success"
	if result.Warning != "" {
		outcome = "warning"
	}
	p.metrics.IncPublishOutcome(outcome)
	p.metrics.ObservePublishDuration(p.now().Sub(started))
	log.Info("publish complete",
		logfields.Status(outcome),
		slog.Bool("configured", result.Configured),
		slog.Bool("live", result.Live),
		logfields.DurationMS(float64(p.now().Sub(started).Milliseconds())))
	return result, nil
}

// FetchExisting returns the currently published document for a collection, or
// ("", false) when the collection or document does not exist. Callers use it
// to assemble revision context for rounds beyond the first; remote trouble is
// deliberately treated as absence, matching first-round behavior.
func (p *Pipeline) FetchExisting(ctx context.Context, name string) (string, bool) {
	file, err := p.forge.GetFile(ctx, p.opts.Owner, name, p.opts.IndexPath, p.opts.Branch)
	if err != nil {
		if !errors.Is(err, forge.ErrNotFound) {
			p.logger.Warn("existing document unavailable, treating as absent",
				logfields.Task(name), logfields.Error(err))
		}
		return "", false
	}
	return string(file.Content), true
}

func (p *Pipeline) pagesURL(name string) string {
	return fmt.Sprintf("https://%s.%s/%s/", p.opts.Owner, p.opts.PagesHost, name)
}

// headRevision reads the current head commit. Failure here is cosmetic: the
// result reports "unknown" rather than aborting a completed publish.
func (p *Pipeline) headRevision(ctx context.Context, name string, log *slog.Logger) string {
	sha, err := p.forge.LatestCommitSHA(ctx, p.opts.Owner, name)
	if err != nil {
		log.Warn("could not read head revision", logfields.Error(err))
		return "unknown"
	}
	return sha
}

// upsertPolicy returns the fixed-delay retry policy for document upserts.
func (p *Pipeline) upsertPolicy() retry.Policy {
	return retry.NewPolicy(retry.BackoffFixed, p.opts.UpsertDelay, p.opts.UpsertDelay, p.opts.UpsertMaxAttempts-1)
}

// pagesPolicy returns the fixed-delay retry policy for hosting convergence.
func (p *Pipeline) pagesPolicy() retry.Policy {
	return retry.NewPolicy(retry.BackoffFixed, p.opts.PagesDelay, p.opts.PagesDelay, p.opts.PagesMaxAttempts-1)
}
