package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"reel-compare/internal/config"
	"reel-compare/internal/domain"
	"reel-compare/internal/domain/ports/adapter"
	"reel-compare/internal/infra/metrics"
	"reel-compare/internal/retry"
)

var _ adapter.MediaToolchain = (*Toolchain)(nil)

// Toolchain adapts the local yt-dlp and ffmpeg binaries to the pipeline's
// probe/download/sanitize/extract capabilities with uniform error codes.
type Toolchain struct {
	ytdlp    string
	ffmpeg   string
	rotation *retry.Rotation
	run      Runner
	cache    *Cache
	log      *zerolog.Logger
}

func NewToolchain(cfg config.MediaConfig, rotation *retry.Rotation, cache *Cache, log *zerolog.Logger) *Toolchain {
	return &Toolchain{
		ytdlp:    cfg.YtDlpPath,
		ffmpeg:   cfg.FFmpegPath,
		rotation: rotation,
		run:      ExecRunner,
		cache:    cache,
		log:      log,
	}
}

// WithRunner swaps the process runner; used by tests.
func (t *Toolchain) WithRunner(run Runner) *Toolchain {
	t.run = run
	return t
}

// probeOutput is the subset of yt-dlp --dump-json we care about.
type probeOutput struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Duration       float64 `json:"duration"`
	Uploader       string  `json:"uploader"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
}

func (t *Toolchain) Probe(ctx context.Context, address string) (*adapter.MediaInfo, error) {
	args := []string{"--dump-json", "--skip-download", "--no-warnings", "--no-playlist", address}
	out, stderr, err := t.run(ctx, t.ytdlp, args...)
	if err != nil {
		cls := t.classify(ctx, stderr, err)
		metrics.IncToolInvocation("yt-dlp", outcomeLabel(cls))
		return nil, fmt.Errorf("probe %s: %w", address, cls)
	}
	metrics.IncToolInvocation("yt-dlp", "ok")

	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return nil, fmt.Errorf("probe %s: parse metadata: %w", address, err)
	}
	size := po.Filesize
	if size == 0 {
		size = po.FilesizeApprox
	}
	return &adapter.MediaInfo{
		EstimatedSizeBytes: size,
		Title:              po.Title,
		Description:        po.Description,
		DurationSec:        po.Duration,
		Uploader:           po.Uploader,
	}, nil
}

func (t *Toolchain) Download(ctx context.Context, address, destPath string) error {
	if t.cache.Exists(destPath) {
		metrics.IncCacheHit("download")
		t.log.Debug().Str("path", destPath).Msg("download cache hit")
		return nil
	}

	tmp := t.cache.TempPath(destPath)
	defer t.cache.Discard(tmp)

	args := []string{"-f", "mp4/b", "-o", tmp, "--no-warnings", "--no-playlist", "--no-part"}
	if ep := t.rotation.Next(); ep != "" {
		// Alternate upstream API hosts mitigate host-level blocking;
		// rotated round-robin on every attempt.
		args = append(args, "--extractor-args", "tiktok:api_hostname="+ep)
	}
	args = append(args, address)

	_, stderr, err := t.run(ctx, t.ytdlp, args...)
	if err != nil {
		cls := t.classify(ctx, stderr, err)
		metrics.IncToolInvocation("yt-dlp", outcomeLabel(cls))
		if errors.Is(cls, domain.ErrTimeout) || errors.Is(cls, domain.ErrUpstreamBlocked) {
			return fmt.Errorf("download %s: %w", address, cls)
		}
		return fmt.Errorf("download %s: %s: %w", address, firstLine(stderr), domain.ErrDownloadFailed)
	}
	metrics.IncToolInvocation("yt-dlp", "ok")

	if err := t.cache.Commit(tmp, destPath); err != nil {
		return fmt.Errorf("download %s: publish artifact: %w", address, err)
	}
	return nil
}

// classify splits toolchain failures into timeout, upstream-block and
// generic process failure so the orchestrator can surface an actionable
// message.
func (t *Toolchain) classify(ctx context.Context, stderr []byte, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", ctx.Err(), domain.ErrTimeout)
	}
	msg := strings.ToLower(string(stderr))
	for _, pat := range blockPatterns {
		if strings.Contains(msg, pat) {
			return fmt.Errorf("%s: %w", firstLine(stderr), domain.ErrUpstreamBlocked)
		}
	}
	return fmt.Errorf("%s: %w", firstLine(stderr), err)
}

// Known block responses from the upstream hosts, matched on yt-dlp stderr.
var blockPatterns = []string{
	"http error 403",
	"http error 429",
	"sign in to confirm",
	"unable to download api page",
	"blocked",
	"captcha",
	"ip address",
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrUpstreamBlocked):
		return "blocked"
	default:
		return "failed"
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
