package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores published tournament snapshots in object storage.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = unsafeKeyChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "tournament"
	}
	return s
}

// SnapshotKey builds `tournaments/<slug>/<yyyymmddThhmmssZ>/<name>` for a published file.
func SnapshotKey(tournament, name string, at time.Time) string {
	return path.Join("tournaments", slug(tournament), at.UTC().Format("20060102T150405Z"), name)
}

// LatestKey is the stable key overwritten on every publication.
func LatestKey(tournament, name string) string {
	return path.Join("tournaments", slug(tournament), "latest", name)
}

func wrapKeyErr(op, key string, err error) error {
	return fmt.Errorf("failed to %s object in R2 (key: %s): %w", op, key, err)
}
