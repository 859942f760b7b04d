package core

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// rfluxmtx writes one RGB triplet per receiver; the three channels carry
// the same scalar, so ingestion keeps every third field.
const channelsPerReceiver = 3

// ParseOutputFile reads one rfluxmtx output artifact and returns the
// per-receiver view factors in file order.
func ParseOutputFile(path string) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read simulation output: %w", err)
	}
	fields := strings.Fields(string(raw))
	values := make([]float64, 0, len(fields)/channelsPerReceiver)
	for i := 0; i < len(fields); i += channelsPerReceiver {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse simulation output %s: %w", path, err)
		}
		values = append(values, v)
	}
	return values, nil
}

var outputNamePattern = regexp.MustCompile(`^output_(.+)_batch_(\d+)\.txt$`)

// ParseOutputName splits an output artifact filename into its emitter
// identifier and batch number. Batch numbers are zero-padded, so a plain
// lexical sort of filenames already yields ascending batch order; the
// parsed number lets callers verify that no batch is missing.
func ParseOutputName(name string) (emitterID string, batch int, err error) {
	m := outputNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, fmt.Errorf("not a simulation output artifact: %q", name)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("not a simulation output artifact: %q", name)
	}
	return m[1], n, nil
}
