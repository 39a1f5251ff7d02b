package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"reel-compare/internal/config"
	"reel-compare/internal/domain"
	"reel-compare/internal/domain/model"
	"reel-compare/internal/domain/ports/adapter"
	"reel-compare/internal/domain/ports/repository"
	"reel-compare/internal/infra/adapters/media"
	"reel-compare/internal/infra/logging"
	"reel-compare/internal/infra/metrics"
	"reel-compare/internal/normalize"
	"reel-compare/internal/retry"
	"reel-compare/internal/transcribe"
)

// Orchestrator drives one comparison end to end: probe, size guard,
// download, sanitize, background transcription, upload, inference,
// normalization. Each job runs as one goroutine; A/B sides run in
// parallel at every stage; failures never escape into the process.
type Orchestrator struct {
	repo     repository.JobRepository
	toolset  adapter.MediaToolchain
	infer    adapter.InferenceProvider
	analyzer adapter.VideoAnalyzer
	fab      adapter.FABProvider
	pool     *transcribe.Pool
	cache    *media.Cache
	cfg      *config.Config
	log      *zerolog.Logger

	probePolicy    retry.Policy
	downloadPolicy retry.Policy
	sanitizePolicy retry.Policy
	uploadPolicy   retry.Policy
	inferPolicy    retry.Policy
}

func NewOrchestrator(
	repo repository.JobRepository,
	toolset adapter.MediaToolchain,
	infer adapter.InferenceProvider,
	analyzer adapter.VideoAnalyzer,
	fab adapter.FABProvider,
	pool *transcribe.Pool,
	cache *media.Cache,
	cfg *config.Config,
	log *zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		toolset:  toolset,
		infer:    infer,
		analyzer: analyzer,
		fab:      fab,
		pool:     pool,
		cache:    cache,
		cfg:      cfg,
		log:      log,

		// Metadata and download: few retries, rotation handles blocking.
		probePolicy: retry.Policy{
			MaxRetries: 2,
			BaseDelay:  500 * time.Millisecond,
			Timeout:    cfg.Media.ProbeTimeout,
		},
		// Downloads take longer than probes, so their own timeout.
		downloadPolicy: retry.Policy{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			Timeout:    cfg.Media.DownloadTimeout,
		},
		sanitizePolicy: retry.Policy{
			MaxRetries: 1,
			BaseDelay:  500 * time.Millisecond,
			Timeout:    cfg.Media.SanitizeTimeout,
		},
		uploadPolicy: retry.Policy{
			MaxRetries: 1,
			BaseDelay:  2 * time.Second,
		},
		// The inference call gets two retries with a steeper multiplier.
		inferPolicy: retry.Policy{
			MaxRetries: 2,
			BaseDelay:  2 * time.Second,
			Multiplier: 3,
		},
	}
}

// side carries one video's artifacts through the stages.
type side struct {
	label  string
	source model.Source
	token  string
	raw    string
	clean  string
	meta   *adapter.MediaInfo
}

func (o *Orchestrator) newSide(label string, src model.Source) *side {
	token := media.Token(src)
	return &side{
		label:  label,
		source: src,
		token:  token,
		raw:    o.cache.RawPath(token),
		clean:  o.cache.CleanPath(token),
	}
}

// Launch starts the orchestrator for a queued job. The ALREADY_RUNNING
// guard lives in MarkProcessing: a second launch for the same id loses
// the CAS and returns without touching the record.
func (o *Orchestrator) Launch(jobID string) {
	go func() {
		ctx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				o.log.Error().Str("job_id", jobID).Interface("panic", r).Msg("orchestrator panicked")
				o.finish(ctx, jobID, nil, fmt.Errorf("panic: %v", r))
			}
		}()

		if err := o.repo.MarkProcessing(ctx, jobID); err != nil {
			o.log.Warn().Err(err).Str("job_id", jobID).Msg("job not started")
			return
		}
		job, err := o.repo.Get(ctx, jobID)
		if err != nil {
			o.log.Error().Err(err).Str("job_id", jobID).Msg("job vanished after start")
			return
		}

		ctx = logging.WithJobID(logging.WithTraceID(ctx, job.TraceID), job.ID)
		log := logging.With(ctx, o.log)
		log.Info().Str("mode", o.cfg.Compare.Mode).Msg("comparison started")

		res, err := o.compare(ctx, log, job.SourceA, job.SourceB, job.CollectionID, job.FABVersionID, func(stage model.Stage) {
			_, uerr := o.repo.Update(ctx, jobID, func(j *model.CompareJob) error {
				j.Stage = stage
				return nil
			})
			if uerr != nil {
				log.Warn().Err(uerr).Str("stage", string(stage)).Msg("stage update failed")
			}
		})
		o.finish(ctx, jobID, res, err)
	}()
}

// finish writes the terminal state exactly once: result atomically with
// done, errorCode atomically with error, duration from the run's own
// startedAt on both paths.
func (o *Orchestrator) finish(ctx context.Context, jobID string, res *model.ComparisonResult, err error) {
	now := time.Now().UTC()
	code := domain.CodeFor(err)
	snapshot, uerr := o.repo.Update(ctx, jobID, func(j *model.CompareJob) error {
		j.CompletedAt = now
		j.Metrics.CompletedAt = now
		if !j.Metrics.StartedAt.IsZero() {
			j.Metrics.DurationMs = now.Sub(j.Metrics.StartedAt).Milliseconds()
		}
		if err != nil {
			j.Status = model.JobStatusError
			j.ErrorCode = code
			j.Stage = stageForCode(code)
			return nil
		}
		j.Status = model.JobStatusDone
		j.Stage = model.StageDone
		j.Result = res
		return nil
	})
	if uerr != nil {
		o.log.Error().Err(uerr).Str("job_id", jobID).Msg("terminal update failed")
		return
	}

	metrics.IncJob(string(snapshot.Status), code)
	metrics.ObserveJobDuration(snapshot.Metrics.DurationMs)
	if err != nil {
		o.log.Error().Err(err).Str("job_id", jobID).Str("code", code).
			Int64("duration_ms", snapshot.Metrics.DurationMs).Msg("comparison failed")
		return
	}
	o.log.Info().Str("job_id", jobID).
		Int64("duration_ms", snapshot.Metrics.DurationMs).Msg("comparison done")
}

func stageForCode(code string) model.Stage {
	switch code {
	case domain.CodeTimeout, domain.CodeUpstreamTimeout:
		return model.StageErrorTimeout
	case domain.CodeSchema, domain.CodeNonJSON:
		return model.StageErrorSchema
	default:
		return model.StageErrorUnknown
	}
}

// DirectCompare is the synchronous path: same pipeline, no job record.
func (o *Orchestrator) DirectCompare(ctx context.Context, a, b model.Source, collectionID, fabVersionID string) (*model.ComparisonResult, error) {
	log := logging.With(ctx, o.log)
	return o.compare(ctx, log, a, b, collectionID, fabVersionID, func(model.Stage) {})
}

func (o *Orchestrator) compare(ctx context.Context, log *zerolog.Logger, a, b model.Source, collectionID, fabVersionID string, setStage func(model.Stage)) (*model.ComparisonResult, error) {
	// Step 1: source shape and host allow-list, before any external call.
	if err := ValidateSource(a, o.cfg.Media.AllowedHosts); err != nil {
		return nil, err
	}
	if err := ValidateSource(b, o.cfg.Media.AllowedHosts); err != nil {
		return nil, err
	}

	setStage(model.StagePreparing)
	sideA := o.newSide("A", a)
	sideB := o.newSide("B", b)

	fabText := o.fabContext(ctx, log, collectionID, fabVersionID)

	if o.cfg.Compare.Mode == "delegate" {
		return o.compareDelegate(ctx, log, sideA, sideB, fabText, setStage)
	}

	// Steps 2-4: probe, download, sanitize; A and B in parallel.
	if err := o.timed("probe", func() error {
		return both(func() error { return o.prepareMetadata(ctx, log, sideA) },
			func() error { return o.prepareMetadata(ctx, log, sideB) })
	}); err != nil {
		return nil, err
	}
	if err := o.timed("download", func() error {
		return both(func() error { return o.fetch(ctx, log, sideA) },
			func() error { return o.fetch(ctx, log, sideB) })
	}); err != nil {
		return nil, err
	}
	if err := o.timed("sanitize", func() error {
		return both(func() error { return o.sanitize(ctx, log, sideA) },
			func() error { return o.sanitize(ctx, log, sideB) })
	}); err != nil {
		return nil, err
	}

	// Step 5: best-effort background transcription, never awaited.
	o.scheduleTranscription(log, sideA)
	o.scheduleTranscription(log, sideB)

	// Steps 6-7 run under the overall model budget.
	mctx, cancel := context.WithTimeout(ctx, o.cfg.AI.ModelBudget)
	defer cancel()

	setStage(model.StageCallingModel)
	handles := make([]*adapter.MediaHandle, 2)
	err := both(
		func() (err error) { handles[0], err = o.uploadSide(mctx, log, sideA); return },
		func() (err error) { handles[1], err = o.uploadSide(mctx, log, sideB); return },
	)
	defer o.cleanupHandles(handles)
	if err != nil {
		return nil, err
	}

	prompt := buildComparePrompt(o.cfg.Prompt.Primary, fabText,
		sideA.meta, sideB.meta, sideA.source.Notes, sideB.source.Notes)
	abbreviated := buildAbbreviatedPrompt(o.cfg.Prompt.Abbreviated)

	res, err := o.inferAndNormalize(mctx, log, prompt, abbreviated, handles, setStage)
	if err != nil {
		return nil, err
	}

	o.attachTranscripts(res, sideA, sideB)
	return res, nil
}

// compareDelegate fans out to the single-video analyzer and fuses the
// two parsed_data payloads with one text-only model call.
func (o *Orchestrator) compareDelegate(ctx context.Context, log *zerolog.Logger, sideA, sideB *side, fabText string, setStage func(model.Stage)) (*model.ComparisonResult, error) {
	if o.analyzer == nil {
		return nil, fmt.Errorf("delegate mode without analyzer: %w", domain.ErrInvalidRequest)
	}

	parsed := make([]json.RawMessage, 2)
	err := o.timed("analyze", func() error {
		return both(
			func() (err error) { parsed[0], err = o.analyzeSide(ctx, log, sideA); return },
			func() (err error) { parsed[1], err = o.analyzeSide(ctx, log, sideB); return },
		)
	})
	if err != nil {
		return nil, err
	}

	mctx, cancel := context.WithTimeout(ctx, o.cfg.AI.ModelBudget)
	defer cancel()

	setStage(model.StageCallingModel)
	prompt := buildFusePrompt(o.cfg.Prompt.Primary, fabText, parsed[0], parsed[1])
	abbreviated := buildAbbreviatedPrompt(o.cfg.Prompt.Abbreviated)
	return o.inferAndNormalize(mctx, log, prompt, abbreviated, nil, setStage)
}

func (o *Orchestrator) analyzeSide(ctx context.Context, log *zerolog.Logger, s *side) (json.RawMessage, error) {
	return retry.Do(ctx, log, "analyze "+s.label, o.inferPolicy, func(ctx context.Context) (json.RawMessage, error) {
		if s.source.Kind == model.SourceKindURL {
			return o.analyzer.AnalyzeURL(ctx, s.source.Address)
		}
		if !o.cache.Exists(s.raw) {
			return nil, fmt.Errorf("upload %s not found: %w", s.source.FileKey, domain.ErrInvalidRequest)
		}
		return o.analyzer.AnalyzeUpload(ctx, s.raw)
	})
}

// inferAndNormalize issues the structured-output call, then parses and
// validates. On NON_JSON or a violation set it retries exactly once with
// the abbreviated prompt before declaring SCHEMA failure.
func (o *Orchestrator) inferAndNormalize(ctx context.Context, log *zerolog.Logger, prompt, abbreviated string, handles []*adapter.MediaHandle, setStage func(model.Stage)) (*model.ComparisonResult, error) {
	raw, err := retry.Do(ctx, log, "infer", o.inferPolicy, func(ctx context.Context) (string, error) {
		return o.infer.Infer(ctx, o.cfg.AI.Model, prompt, handles)
	})
	if err != nil {
		return nil, err
	}

	setStage(model.StageParsing)
	res, verr := o.parseResult(raw, o.cfg.Prompt.Primary)
	if verr == nil {
		return res, nil
	}

	log.Warn().Err(verr).Msg("model output rejected, retrying with abbreviated prompt")
	metrics.IncSchemaRetry()

	raw, err = retry.Do(ctx, log, "infer-abbreviated", retry.Policy{MaxRetries: 0}, func(ctx context.Context) (string, error) {
		return o.infer.Infer(ctx, o.cfg.AI.Model, abbreviated, handles)
	})
	if err != nil {
		return nil, err
	}
	res, verr = o.parseResult(raw, o.cfg.Prompt.Abbreviated)
	if verr != nil {
		// NON_JSON is an internal parser condition; once the retry is
		// spent the job surfaces SCHEMA either way.
		if !errors.Is(verr, domain.ErrSchema) {
			verr = fmt.Errorf("%v: %w", verr, domain.ErrSchema)
		}
		return nil, verr
	}
	return res, nil
}

func (o *Orchestrator) parseResult(raw string, variant config.VariantConfig) (*model.ComparisonResult, error) {
	obj, err := normalize.ParseLenient(raw)
	if err != nil {
		return nil, err
	}
	schema := normalize.SchemaFor(variant)
	if violations := schema.Validate(obj); len(violations) > 0 {
		return nil, fmt.Errorf("%s: %w", violations.Error(), domain.ErrSchema)
	}
	return normalize.ToUIResult(obj, schema), nil
}

// prepareMetadata probes URL sources and applies the estimate-based size
// guard; uploads only need the artifact to exist.
func (o *Orchestrator) prepareMetadata(ctx context.Context, log *zerolog.Logger, s *side) error {
	if s.source.Kind == model.SourceKindUpload {
		if !o.cache.Exists(s.raw) {
			return fmt.Errorf("upload %s not found: %w", s.source.FileKey, domain.ErrInvalidRequest)
		}
		return nil
	}

	meta, err := retry.Do(ctx, log, "probe "+s.label, o.probePolicy, func(ctx context.Context) (*adapter.MediaInfo, error) {
		return o.toolset.Probe(ctx, s.source.Address)
	})
	if err != nil {
		return err
	}
	s.meta = meta
	if meta.EstimatedSizeBytes > o.cfg.Media.MaxSizeBytes {
		return fmt.Errorf("estimated %d bytes over %d ceiling: %w",
			meta.EstimatedSizeBytes, o.cfg.Media.MaxSizeBytes, domain.ErrTooLarge)
	}
	return nil
}

// fetch downloads a URL source and re-checks the real on-disk size:
// estimates lie, so an oversized artifact is discarded here.
func (o *Orchestrator) fetch(ctx context.Context, log *zerolog.Logger, s *side) error {
	if s.source.Kind == model.SourceKindUpload {
		return o.guardSize(s, s.raw)
	}

	_, err := retry.Do(ctx, log, "download "+s.label, o.downloadPolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.toolset.Download(ctx, s.source.Address, s.raw)
	})
	if err != nil {
		return err
	}
	return o.guardSize(s, s.raw)
}

func (o *Orchestrator) guardSize(s *side, path string) error {
	size, err := o.cache.Size(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if size > o.cfg.Media.MaxSizeBytes {
		o.cache.Discard(path)
		return fmt.Errorf("%s is %d bytes, over %d ceiling: %w",
			s.label, size, o.cfg.Media.MaxSizeBytes, domain.ErrTooLarge)
	}
	return nil
}

func (o *Orchestrator) sanitize(ctx context.Context, log *zerolog.Logger, s *side) error {
	_, err := retry.Do(ctx, log, "sanitize "+s.label, o.sanitizePolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.toolset.Sanitize(ctx, s.raw, s.clean)
	})
	return err
}

func (o *Orchestrator) scheduleTranscription(log *zerolog.Logger, s *side) {
	if o.pool == nil {
		return
	}
	err := o.pool.Schedule(transcribe.Request{
		VideoPath:      s.clean,
		AudioPath:      o.cache.AudioPath(s.token),
		TranscriptPath: o.cache.TranscriptPath(s.token),
	})
	if err != nil && !errors.Is(err, domain.ErrDisabled) {
		log.Debug().Err(err).Str("side", s.label).Msg("transcription not scheduled")
	}
}

func (o *Orchestrator) uploadSide(ctx context.Context, log *zerolog.Logger, s *side) (*adapter.MediaHandle, error) {
	return retry.Do(ctx, log, "upload "+s.label, o.uploadPolicy, func(ctx context.Context) (*adapter.MediaHandle, error) {
		return o.infer.UploadMedia(ctx, s.clean)
	})
}

func (o *Orchestrator) cleanupHandles(handles []*adapter.MediaHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := o.infer.DeleteMedia(ctx, h); err != nil {
			o.log.Debug().Err(err).Str("handle", h.Name).Msg("provider cleanup failed")
		}
	}
}

// attachTranscripts merges any transcripts the background pool has
// finished by now; absence is normal.
func (o *Orchestrator) attachTranscripts(res *model.ComparisonResult, sideA, sideB *side) {
	read := func(s *side) string {
		b, err := os.ReadFile(o.cache.TranscriptPath(s.token))
		if err != nil {
			return ""
		}
		return string(b)
	}
	ta, tb := read(sideA), read(sideB)
	if ta == "" && tb == "" {
		return
	}
	if res.Transcripts == nil {
		res.Transcripts = &model.Transcripts{}
	}
	if ta != "" {
		res.Transcripts.A = ta
	}
	if tb != "" {
		res.Transcripts.B = tb
	}
}

func (o *Orchestrator) fabContext(ctx context.Context, log *zerolog.Logger, collectionID, fabVersionID string) string {
	if o.fab == nil || collectionID == "" {
		return ""
	}
	text, err := o.fab.FABText(ctx, collectionID, fabVersionID)
	if err != nil {
		// Grounding context is nice to have, never load-bearing.
		log.Debug().Err(err).Str("collection_id", collectionID).Msg("fab context unavailable")
		return ""
	}
	return text
}

func (o *Orchestrator) timed(stage string, f func() error) error {
	start := time.Now()
	err := f()
	metrics.ObserveStage(stage, time.Since(start).Milliseconds(), err == nil)
	return err
}

// both runs the two sides concurrently and returns the first failure.
func both(fa, fb func() error) error {
	errc := make(chan error, 2)
	go func() { errc <- fa() }()
	go func() { errc <- fb() }()
	var first error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil && first == nil {
			first = err
		}
	}
	return first
}
