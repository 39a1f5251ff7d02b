package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reel-compare/internal/domain/model"
)

// Token derives the stable cache key for a source: a content hash of the
// URL, or the caller-supplied file key for uploads. One token means one
// physical artifact, no matter how many jobs reference the source.
func Token(src model.Source) string {
	if src.Kind == model.SourceKindUpload {
		return sanitizeKey(src.FileKey)
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(src.Address)))
	return hex.EncodeToString(sum[:])[:16]
}

func sanitizeKey(key string) string {
	key = filepath.Base(strings.TrimSpace(key))
	key = strings.TrimSuffix(key, filepath.Ext(key))
	if key == "" || key == "." {
		return "upload-" + uuid.NewString()[:8]
	}
	return key
}

// Cache maps tokens to on-disk artifact paths and owns the temp-write
// plus rename-into-place discipline that keeps concurrent jobs from
// corrupting each other's artifacts.
type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) RawPath(token string) string        { return filepath.Join(c.dir, token+".mp4") }
func (c *Cache) CleanPath(token string) string      { return filepath.Join(c.dir, token+".clean.mp4") }
func (c *Cache) AudioPath(token string) string      { return filepath.Join(c.dir, token+".wav") }
func (c *Cache) TranscriptPath(token string) string { return filepath.Join(c.dir, token+".txt") }

// Exists reports whether the artifact is fully written. Partial writes
// live under temp names, so presence of the final path means complete.
func (c *Cache) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// TempPath returns a unique sibling path for in-progress writes.
func (c *Cache) TempPath(finalPath string) string {
	return finalPath + ".part-" + uuid.NewString()[:8]
}

// Commit atomically publishes tmpPath as finalPath.
func (c *Cache) Commit(tmpPath, finalPath string) error {
	return os.Rename(tmpPath, finalPath)
}

// Discard removes a temp or rejected artifact, ignoring absence.
func (c *Cache) Discard(path string) {
	_ = os.Remove(path)
}

func (c *Cache) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
