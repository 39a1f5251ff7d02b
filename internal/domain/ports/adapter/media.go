package adapter

import "context"

// MediaInfo is the metadata-only view of a source, probed before any
// bytes are fetched.
type MediaInfo struct {
	EstimatedSizeBytes int64
	Title              string
	Description        string
	DurationSec        float64
	Uploader           string
}

// MediaToolchain is the capability boundary over the installed
// yt-dlp/ffmpeg binaries. Every operation skips work when its destination
// already exists (cache hit) and distinguishes timeout, upstream-block
// and generic process failures via domain sentinel errors.
type MediaToolchain interface {
	// Probe fetches metadata without downloading media.
	Probe(ctx context.Context, address string) (*MediaInfo, error)

	// Download fetches the full media to destPath, writing to a temp path
	// and renaming into place on completion.
	Download(ctx context.Context, address, destPath string) error

	// Sanitize remuxes the container (stream copy, no re-encode) into
	// dstPath, normalizing metadata and moving the fast-start index.
	Sanitize(ctx context.Context, srcPath, dstPath string) error

	// ExtractAudio writes mono 16kHz PCM audio from the video to wavPath.
	ExtractAudio(ctx context.Context, srcPath, wavPath string) error
}
