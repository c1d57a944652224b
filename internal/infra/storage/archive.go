// Package storage archives scan results to object storage. MinIO and any
// S3-compatible service are supported.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const contentType = "application/json"

// Record is the archived document.
type Record struct {
	URL        string            `json:"url"`
	Result     *scans.ScanResult `json:"result"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// ObjectKey lays results out by UTC day. Fallback results share an ID so
// they get a random suffix.
func ObjectKey(r *scans.ScanResult, now time.Time) string {
	id := string(r.ID)
	if id == "" || r.IsFallback() {
		id = fmt.Sprintf("%s-%s", scans.FallbackID, uuid.NewString())
	}
	d := now.UTC()
	return fmt.Sprintf("scans/%04d/%02d/%02d/%s.json", d.Year(), d.Month(), d.Day(), id)
}

func encode(r *scans.ScanResult, url string, now time.Time) ([]byte, error) {
	b, err := json.Marshal(Record{URL: url, Result: r, ArchivedAt: now.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode archive record: %w", err)
	}
	return b, nil
}
