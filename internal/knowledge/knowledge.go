// Package knowledge classifies how much trust accumulated treatment history
// deserves and condenses it into persistent knowledge records.
package knowledge

import (
	"encoding/json"
	"fmt"
	"time"

	"shoalcore/internal/history"
	"shoalcore/pkg/domain"
)

// Confidence grades a knowledge record's evidential weight.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNoData Confidence = "no_data"
)

// DefaultMinSampleSize is the sample size below which HasSufficientData
// reports false when the caller passes no explicit minimum.
const DefaultMinSampleSize = 3

// Level grades a sample. Both thresholds of a tier must hold; a large sample
// with a weak rate falls through to low, as does a strong rate on a thin
// sample.
func Level(sampleSize int, successRate float64) Confidence {
	switch {
	case sampleSize == 0:
		return ConfidenceNoData
	case sampleSize >= 5 && successRate >= 85:
		return ConfidenceHigh
	case sampleSize >= 3 && successRate >= 70:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// HasSufficientData reports whether the sample clears the minimum size.
func HasSufficientData(sampleSize, minSampleSize int) bool {
	return sampleSize >= minSampleSize
}

// LevelFor grades a stored knowledge record. A record without a success rate
// is graded as rate zero.
func LevelFor(record domain.KnowledgeRecord) Confidence {
	rate := 0.0
	if record.SuccessRate != nil {
		rate = *record.SuccessRate
	}
	return Level(record.SampleSize, rate)
}

// Build condenses a historical context into a knowledge record. The
// successful protocols are stored as a JSON document; sample size is the
// number of treatments with a recorded outcome.
func Build(ctx history.Context) (domain.KnowledgeRecord, error) {
	protocols, err := json.Marshal(ctx.SuccessfulProtocols)
	if err != nil {
		return domain.KnowledgeRecord{}, fmt.Errorf("encode protocols: %w", err)
	}
	sampleSize := 0
	for _, t := range ctx.Treatments {
		if t.SuccessRate != nil {
			sampleSize++
		}
	}
	record := domain.KnowledgeRecord{
		Source:              ctx.SourceCountry,
		ScientificName:      ctx.ScientificName,
		SuccessfulProtocols: protocols,
		SampleSize:          sampleSize,
	}
	if ctx.AvgSuccessRate != nil {
		rate := *ctx.AvgSuccessRate
		record.SuccessRate = &rate
	}
	return record, nil
}

// archivePayload is the JSON document written to the archive.
type archivePayload struct {
	ArchivedAt     time.Time       `json:"archived_at"`
	Source         string          `json:"source"`
	ScientificName string          `json:"scientific_name"`
	SuccessRate    *float64        `json:"success_rate"`
	SampleSize     int             `json:"sample_size"`
	Confidence     Confidence      `json:"confidence"`
	Context        history.Context `json:"context"`
}
