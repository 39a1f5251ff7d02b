// File: internal/transcribe/pool.go
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reel-compare/internal/config"
	"reel-compare/internal/domain"
	"reel-compare/internal/infra/adapters/media"
	"reel-compare/internal/infra/metrics"
)

// Segment is one recognized span of speech.
type Segment struct {
	Start float64 // seconds
	End   float64
	Text  string
}

// SpeechToText wraps the speech-recognition CLI.
type SpeechToText interface {
	Transcribe(ctx context.Context, wavPath string) ([]Segment, error)
}

// AudioExtractor is the slice of the media toolchain the pool needs.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, srcPath, wavPath string) error
}

// Request names the three artifact paths for one transcription job.
type Request struct {
	VideoPath      string
	AudioPath      string
	TranscriptPath string
}

// Pool is the bounded-concurrency background transcription queue.
// Scheduling is fire-and-forget: the pipeline never waits on it and
// every worker failure is swallowed. Excess jobs wait in FIFO order in
// the queue channel; never more than `workers` run at once.
type Pool struct {
	enabled          bool
	workers          int
	extractTimeout   time.Duration
	transcribeBudget time.Duration

	extractor AudioExtractor
	stt       SpeechToText
	cache     *media.Cache
	log       *zerolog.Logger

	queue chan Request
	quit  chan struct{}
	wg    sync.WaitGroup
}

func NewPool(cfg config.TranscribeConfig, extractor AudioExtractor, stt SpeechToText, cache *media.Cache, log *zerolog.Logger) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		enabled:          cfg.Enabled,
		workers:          workers,
		extractTimeout:   cfg.ExtractTimeout,
		transcribeBudget: cfg.TranscribeBudget,
		extractor:        extractor,
		stt:              stt,
		cache:            cache,
		log:              log,
		queue:            make(chan Request, 64),
		quit:             make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	if !p.enabled {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case req := <-p.queue:
					p.runOne(ctx, id, req)
				}
			}
		}(i)
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Schedule enqueues a job. When the feature is disabled it rejects with
// domain.ErrDisabled, which callers treat as a silent no-op. A full
// queue drops the job; best-effort work is never worth back-pressure.
func (p *Pool) Schedule(req Request) error {
	if !p.enabled {
		return domain.ErrDisabled
	}
	select {
	case p.queue <- req:
		metrics.AddTranscriptionQueued(1)
		return nil
	default:
		metrics.IncTranscription("dropped")
		return errors.New("transcription queue full")
	}
}

func (p *Pool) runOne(ctx context.Context, worker int, req Request) {
	// The queued gauge must come down on every path or the pool reads
	// as permanently saturated.
	defer metrics.AddTranscriptionQueued(-1)

	log := p.log.With().Int("worker", worker).Str("video", req.VideoPath).Logger()

	if p.cache.Exists(req.TranscriptPath) {
		metrics.IncCacheHit("transcript")
		metrics.IncTranscription("skipped")
		return
	}

	if err := p.process(ctx, req); err != nil {
		// Best-effort: log and swallow, the main pipeline never sees this.
		metrics.IncTranscription("failed")
		log.Warn().Err(err).Msg("transcription failed")
		return
	}
	metrics.IncTranscription("done")
	log.Debug().Str("transcript", req.TranscriptPath).Msg("transcript written")
}

func (p *Pool) process(ctx context.Context, req Request) error {
	ectx, cancel := context.WithTimeout(ctx, p.extractTimeout)
	err := p.extractor.ExtractAudio(ectx, req.VideoPath, req.AudioPath)
	cancel()
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}

	tctx, cancel := context.WithTimeout(ctx, p.transcribeBudget)
	segments, err := p.stt.Transcribe(tctx, req.AudioPath)
	cancel()
	if err != nil {
		return fmt.Errorf("speech recognition: %w", err)
	}

	tmp := p.cache.TempPath(req.TranscriptPath)
	defer p.cache.Discard(tmp)
	if err := os.WriteFile(tmp, []byte(FormatSegments(segments)), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return p.cache.Commit(tmp, req.TranscriptPath)
}

// FormatSegments renders recognized segments as `[mm:ss-mm:ss] text`
// lines, one per segment.
func FormatSegments(segments []Segment) string {
	var sb strings.Builder
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "[%s-%s] %s\n", clock(s.Start), clock(s.End), text)
	}
	return sb.String()
}

func clock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
