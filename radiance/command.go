package radiance

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrMissingInputFile = errors.New("input file not found")
	ErrMissingIndexFile = errors.New("octree file not found")
)

// Invocation is one rfluxmtx run: a single emitter against one receiver
// batch, optionally accelerated by a context octree.
type Invocation struct {
	EmitterPath  string
	ReceiverPath string
	OutputPath   string
	OctreePath   string // optional
	RayCount     int
}

// Command performs the pre-flight file checks and returns the shell
// command line for the invocation. The emitter is wrapped in an inverted
// xform so rays are emitted against its orientation, as rfluxmtx expects
// for a sender surface.
func (inv Invocation) Command() (string, error) {
	if _, err := os.Stat(inv.EmitterPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingInputFile, inv.EmitterPath)
	}
	if _, err := os.Stat(inv.ReceiverPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingInputFile, inv.ReceiverPath)
	}
	if inv.OctreePath != "" {
		if _, err := os.Stat(inv.OctreePath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrMissingIndexFile, inv.OctreePath)
		}
	}

	rays := inv.RayCount
	if rays <= 0 {
		rays = DefaultRayCount
	}

	var b strings.Builder
	fmt.Fprintf(&b, `rfluxmtx -h- -ab 0 -c %d "!xform -I %q" %q`, rays, inv.EmitterPath, inv.ReceiverPath)
	if inv.OctreePath != "" {
		fmt.Fprintf(&b, " %q", inv.OctreePath)
	}
	fmt.Fprintf(&b, " > %q", inv.OutputPath)
	return b.String(), nil
}

// DefaultRayCount is the ray count used when an invocation does not
// specify one.
const DefaultRayCount = 10000

// OconvCommand returns the shell command line generating an octree from
// the given scene files. Every input must already exist.
func OconvCommand(radPaths []string, octreePath string) (string, error) {
	if len(radPaths) == 0 {
		return "", fmt.Errorf("%w: no scene files for octree", ErrMissingInputFile)
	}
	for _, p := range radPaths {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s", ErrMissingInputFile, p)
		}
	}

	var b strings.Builder
	b.WriteString("oconv")
	for _, p := range radPaths {
		fmt.Fprintf(&b, " %q", p)
	}
	fmt.Fprintf(&b, " > %q", octreePath)
	return b.String(), nil
}

// GroupCommands concatenates several command lines into one compound
// shell command. This amortises process-spawn overhead at the cost of
// failure attribution: when the compound command fails, the failing
// sub-invocation is not identified. Missing output artifacts are the
// signal result ingestion acts on.
func GroupCommands(commands []string) string {
	return strings.Join(commands, " && ")
}
