package texcount

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrToolNotFound means the counting binary is not on PATH.
var ErrToolNotFound = errors.New("counting tool not found")

// Service implements counting.Counter by invoking the external texcount
// tool in brief mode and parsing its leading word-count field.
type Service struct {
	binary string
}

// NewService creates a counter around the given binary ("texcount" normally).
func NewService(binary string) *Service {
	if binary == "" {
		binary = "texcount"
	}
	return &Service{binary: binary}
}

// Count runs `<binary> -brief <path>` and returns the parsed word count.
// Failures are recoverable for callers: the previous count should be kept.
func (s *Service) Count(ctx context.Context, path string) (int, error) {
	if _, err := exec.LookPath(s.binary); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrToolNotFound, s.binary)
	}

	cmd := exec.CommandContext(ctx, s.binary, "-brief", path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%s failed for %s: %w", s.binary, path, err)
	}

	count, err := parseBrief(string(output))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s output for %s: %w", s.binary, path, err)
	}
	return count, nil
}

// parseBrief extracts the word count from brief-mode output. The first line
// looks like "123+45+6 (1/2/3/4) File: thesis.tex"; the field before the
// first '+' is the word count.
func parseBrief(output string) (int, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	if line == "" {
		return 0, errors.New("empty output")
	}
	field, _, _ := strings.Cut(line, "+")
	// A count without sub-counts ends at the first space instead.
	field, _, _ = strings.Cut(strings.TrimSpace(field), " ")
	count, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("unparsable count field %q", field)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative count %d", count)
	}
	return count, nil
}
