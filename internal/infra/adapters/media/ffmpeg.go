package media

import (
	"context"
	"fmt"

	"reel-compare/internal/infra/metrics"
)

// Sanitize remuxes the container without re-encoding: metadata is
// stripped and the moov atom moved up front for progressive playback.
// Audio/video bitstreams pass through byte-for-byte.
func (t *Toolchain) Sanitize(ctx context.Context, srcPath, dstPath string) error {
	if t.cache.Exists(dstPath) {
		metrics.IncCacheHit("sanitize")
		return nil
	}

	tmp := t.cache.TempPath(dstPath)
	defer t.cache.Discard(tmp)

	args := []string{
		"-y", "-i", srcPath,
		"-c", "copy",
		"-map_metadata", "-1",
		"-movflags", "+faststart",
		"-f", "mp4",
		tmp,
	}
	_, stderr, err := t.run(ctx, t.ffmpeg, args...)
	if err != nil {
		cls := t.classify(ctx, stderr, err)
		metrics.IncToolInvocation("ffmpeg", outcomeLabel(cls))
		return fmt.Errorf("sanitize %s: %w", srcPath, cls)
	}
	metrics.IncToolInvocation("ffmpeg", "ok")

	if err := t.cache.Commit(tmp, dstPath); err != nil {
		return fmt.Errorf("sanitize %s: publish artifact: %w", srcPath, err)
	}
	return nil
}

// ExtractAudio writes mono 16kHz PCM for the speech recognizer.
func (t *Toolchain) ExtractAudio(ctx context.Context, srcPath, wavPath string) error {
	if t.cache.Exists(wavPath) {
		metrics.IncCacheHit("audio")
		return nil
	}

	tmp := t.cache.TempPath(wavPath)
	defer t.cache.Discard(tmp)

	args := []string{
		"-y", "-i", srcPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		tmp,
	}
	_, stderr, err := t.run(ctx, t.ffmpeg, args...)
	if err != nil {
		cls := t.classify(ctx, stderr, err)
		metrics.IncToolInvocation("ffmpeg", outcomeLabel(cls))
		return fmt.Errorf("extract audio %s: %w", srcPath, cls)
	}
	metrics.IncToolInvocation("ffmpeg", "ok")

	if err := t.cache.Commit(tmp, wavPath); err != nil {
		return fmt.Errorf("extract audio %s: publish artifact: %w", srcPath, err)
	}
	return nil
}
