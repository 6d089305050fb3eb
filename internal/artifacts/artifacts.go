// Package artifacts stores failure evidence (page captures, reports) produced
// by a run, either in an S3-compatible bucket or in a local directory.
package artifacts

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// ErrObjectNotFound is returned when a requested artifact does not exist.
var ErrObjectNotFound = errors.New("artifacts: object not found")

// Store persists artifacts. Put returns where the artifact can be found.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func slug(s string) string {
	s = unsafeKeyChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unnamed"
	}
	return s
}

// Key builds the object key for an artifact of a scenario step:
// <run>/<scenario>/step-<n>.<ext>.
func Key(runID, scenario string, step int, ext string) string {
	return path.Join(slug(runID), slug(scenario), "step-"+strconv.Itoa(step)+"."+strings.TrimPrefix(ext, "."))
}
