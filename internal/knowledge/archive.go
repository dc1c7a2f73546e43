package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shoalcore/internal/blob"
	"shoalcore/internal/history"
)

// Archiver writes historical context snapshots to a blob store so aggregates
// survive record pruning. Keys follow
// knowledge/<species>/<source>/<uuid>.json.
type Archiver struct {
	store blob.Store
	now   func() time.Time
}

// NewArchiver constructs an archiver over the given store. A nil now func
// means UTC system time.
func NewArchiver(store blob.Store, now func() time.Time) *Archiver {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Archiver{store: store, now: now}
}

// keySegment lowercases a name and replaces spaces so keys stay flat.
func keySegment(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	if s == "" {
		s = "unknown"
	}
	return s
}

// Archive snapshots a context and returns the stored object's key.
func (a *Archiver) Archive(ctx context.Context, hctx history.Context) (string, error) {
	rate := 0.0
	if hctx.AvgSuccessRate != nil {
		rate = *hctx.AvgSuccessRate
	}
	sampleSize := 0
	for _, t := range hctx.Treatments {
		if t.SuccessRate != nil {
			sampleSize++
		}
	}
	payload := archivePayload{
		ArchivedAt:     a.now().UTC(),
		Source:         hctx.SourceCountry,
		ScientificName: hctx.ScientificName,
		SuccessRate:    hctx.AvgSuccessRate,
		SampleSize:     sampleSize,
		Confidence:     Level(sampleSize, rate),
		Context:        hctx,
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode archive payload: %w", err)
	}

	key := fmt.Sprintf("knowledge/%s/%s/%s.json",
		keySegment(hctx.ScientificName), keySegment(hctx.SourceCountry), uuid.NewString())
	_, err = a.store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"species": hctx.ScientificName,
			"source":  hctx.SourceCountry,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive context: %w", err)
	}
	return key, nil
}

// List returns the archived snapshots for a species and source pair, newest
// key ordering left to the store.
func (a *Archiver) List(ctx context.Context, scientificName, source string) ([]blob.Info, error) {
	prefix := fmt.Sprintf("knowledge/%s/%s/", keySegment(scientificName), keySegment(source))
	return a.store.List(ctx, prefix)
}
