package align

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/franz/fuga/internal/alphabet"
	"github.com/franz/fuga/internal/util"
)

// DefaultTimeout bounds a single external invocation
const DefaultTimeout = 30 * time.Second

// Exec runs an external aligner once per distance:
//
//	<binary> [prefix...] <a> <b> -f <track>
//
// A zero exit status and a number on stdout is a distance; anything else is
// ErrInvocation.
type Exec struct {
	Binary  string
	Prefix  []string
	Timeout time.Duration
}

// NewExec resolves binary on PATH
func NewExec(binary string, prefix []string, timeout time.Duration) (*Exec, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("alignment engine %s: %w", binary, util.ErrNotFound)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exec{Binary: path, Prefix: prefix, Timeout: timeout}, nil
}

// Name implements Engine
func (e *Exec) Name() string { return "exec" }

// Args returns the argument list of one invocation
func (e *Exec) Args(a, b string, track alphabet.Track) []string {
	args := make([]string, 0, len(e.Prefix)+4)
	args = append(args, e.Prefix...)
	return append(args, a, b, "-f", string(track))
}

// Distance implements Engine
func (e *Exec) Distance(ctx context.Context, a, b string, track alphabet.Track) (float64, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Binary, e.Args(a, b, track)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %s timed out after %v", ErrInvocation, track, timeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return 0, fmt.Errorf("%w: %s exited %d: %s", ErrInvocation, track,
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return 0, fmt.Errorf("%w: %s: %v", ErrInvocation, track, err)
	}

	out := strings.TrimSpace(stdout.String())
	d, err := strconv.ParseFloat(out, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: %s printed %q", ErrInvocation, track, out)
	}
	return d, nil
}
