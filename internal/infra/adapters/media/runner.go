package media

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes an external binary and returns stdout/stderr. The
// toolchain runs everything through a Runner so tests can count and fake
// invocations without the binaries installed.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs the command via exec.CommandContext, which kills the
// OS process when the context deadline fires.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.Bytes(), errBuf.Bytes(), err
}
