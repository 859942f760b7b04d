// Package radiance speaks the input and command grammar of the Radiance
// tool suite: .rad scene files, rfluxmtx view-factor invocations and oconv
// octree generation. The binaries themselves are external; this package
// only prepares their inputs and spawns them.
package radiance

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fluxfoundry/radiance-vf/geometry"
)

// rfluxmtxHeader tells rfluxmtx to treat the file's surfaces with uniform
// hemisphere sampling.
const rfluxmtxHeader = "#@rfluxmtx h=u\n"

// SurfaceRadString renders one polygon in the Radiance scene grammar: a
// glow modifier followed by the polygon primitive listing all coordinates.
// The output is deterministic for a given identifier and boundary, so it
// is computed once per surface and cached.
func SurfaceRadString(identifier string, boundary []geometry.Vec3) string {
	var b strings.Builder
	fmt.Fprintf(&b, "void glow sur_%s\n", identifier)
	b.WriteString("0\n")
	b.WriteString("0\n")
	b.WriteString("4 1 1 1 0\n")
	fmt.Fprintf(&b, "sur_%s polygon surface.%s\n", identifier, identifier)
	b.WriteString("0\n")
	b.WriteString("0\n")
	b.WriteString(strconv.Itoa(len(boundary) * 3))
	for _, p := range boundary {
		fmt.Fprintf(&b, " %s %s %s\n", formatCoord(p.X), formatCoord(p.Y), formatCoord(p.Z))
	}
	return b.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteEmitterFile writes a single surface as an rfluxmtx emitter file.
func WriteEmitterFile(path, radContent string) error {
	return writeRadFile(path, rfluxmtxHeader+radContent)
}

// WriteReceiverFile writes a batch of receiver surfaces into one rfluxmtx
// receiver file.
func WriteReceiverFile(path string, radContents []string) error {
	var b strings.Builder
	b.WriteString(rfluxmtxHeader)
	for _, c := range radContents {
		b.WriteString(c)
	}
	return writeRadFile(path, b.String())
}

// WriteOctreeRadFile writes a batch of surfaces as a plain scene file to
// be fed to oconv. Octree inputs carry no rfluxmtx header.
func WriteOctreeRadFile(path string, radContents []string) error {
	var b strings.Builder
	for _, c := range radContents {
		b.WriteString(c)
	}
	return writeRadFile(path, b.String())
}

func writeRadFile(path, content string) error {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return fmt.Errorf("parent folder of %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
