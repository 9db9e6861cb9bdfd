// Package upload simulates the file-upload collaborator. File contents are
// never stored; only the reference string is produced.
package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/latency"
)

// MaxSize is the largest accepted upload.
const MaxSize = 10 << 20

// Uploader turns a named file into a reference string.
type Uploader interface {
	Upload(ctx context.Context, name string, size int64, progress func(percent int)) (string, error)
}

// Simulated reports progress in steps of 10 and returns /uploads/<ms>_<name>.
type Simulated struct {
	sim latency.Simulator
	now func() time.Time
}

// NewSimulated returns an uploader whose per-step delay and faults come from sim.
func NewSimulated(sim latency.Simulator) *Simulated {
	if sim == nil {
		sim = latency.None()
	}
	return &Simulated{sim: sim, now: time.Now}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Upload implements Uploader. progress may be nil.
func (s *Simulated) Upload(ctx context.Context, name string, size int64, progress func(int)) (string, error) {
	clean := sanitize(name)
	if clean == "" {
		return "", fmt.Errorf("upload: empty file name: %w", apperr.ErrValidation)
	}
	if size <= 0 || size > MaxSize {
		return "", fmt.Errorf("upload: size %d out of range: %w", size, apperr.ErrValidation)
	}

	for pct := 0; pct <= 100; pct += 10 {
		if progress != nil {
			progress(pct)
		}
		if pct == 100 {
			break
		}
		if err := s.sim.Wait(ctx, "upload"); err != nil {
			return "", fmt.Errorf("upload: %s: %w", clean, err)
		}
	}
	return fmt.Sprintf("/uploads/%d_%s", s.now().UnixMilli(), clean), nil
}

func sanitize(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_")
}
