package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"shoalcore/internal/blob"
	"shoalcore/internal/history"
	"shoalcore/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func TestLevel(t *testing.T) {
	cases := []struct {
		sampleSize int
		rate       float64
		want       Confidence
	}{
		{0, 0, ConfidenceNoData},
		{0, 95, ConfidenceNoData},
		{10, 90, ConfidenceHigh},
		{5, 85, ConfidenceHigh},
		{5, 84.9, ConfidenceMedium},
		{4, 95, ConfidenceMedium},
		{3, 70, ConfidenceMedium},
		{10, 72, ConfidenceMedium},
		{3, 69.9, ConfidenceLow},
		{2, 100, ConfidenceLow},
		{1, 50, ConfidenceLow},
	}
	for _, tc := range cases {
		if got := Level(tc.sampleSize, tc.rate); got != tc.want {
			t.Fatalf("Level(%d, %v) = %q, want %q", tc.sampleSize, tc.rate, got, tc.want)
		}
	}
}

func TestHasSufficientData(t *testing.T) {
	if !HasSufficientData(3, DefaultMinSampleSize) {
		t.Fatalf("3 samples should suffice at default minimum")
	}
	if HasSufficientData(2, DefaultMinSampleSize) {
		t.Fatalf("2 samples should not suffice at default minimum")
	}
	if HasSufficientData(5, 10) {
		t.Fatalf("5 samples should not suffice at minimum 10")
	}
}

func TestLevelFor(t *testing.T) {
	record := domain.KnowledgeRecord{SampleSize: 6, SuccessRate: ptr(90.0)}
	if got := LevelFor(record); got != ConfidenceHigh {
		t.Fatalf("LevelFor = %q, want high", got)
	}
	// A record without a rate grades as rate zero.
	record = domain.KnowledgeRecord{SampleSize: 6}
	if got := LevelFor(record); got != ConfidenceLow {
		t.Fatalf("LevelFor without rate = %q, want low", got)
	}
}

func sampleContext() history.Context {
	return history.Context{
		ShipmentCount:  3,
		ScientificName: "Betta splendens",
		SourceCountry:  "Thailand",
		AvgSuccessRate: ptr(91.5),
		Treatments: []history.TreatmentSummary{
			{TreatmentID: "t1", SuccessRate: ptr(96.0)},
			{TreatmentID: "t2", SuccessRate: ptr(87.0)},
			{TreatmentID: "t3"},
		},
		SuccessfulProtocols: []history.Protocol{
			{Drugs: []history.DrugUse{{Name: "Methylene Blue"}}},
		},
		TotalFish: 150,
	}
}

func TestBuild(t *testing.T) {
	record, err := Build(sampleContext())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if record.Source != "Thailand" || record.ScientificName != "Betta splendens" {
		t.Fatalf("identity fields = %q/%q", record.Source, record.ScientificName)
	}
	// Sample size counts only treatments with recorded outcomes.
	if record.SampleSize != 2 {
		t.Fatalf("SampleSize = %d, want 2", record.SampleSize)
	}
	if record.SuccessRate == nil || *record.SuccessRate != 91.5 {
		t.Fatalf("SuccessRate = %v, want 91.5", record.SuccessRate)
	}
	var protocols []history.Protocol
	if err := json.Unmarshal(record.SuccessfulProtocols, &protocols); err != nil {
		t.Fatalf("decode protocols: %v", err)
	}
	if len(protocols) != 1 || protocols[0].Drugs[0].Name != "Methylene Blue" {
		t.Fatalf("protocols = %+v", protocols)
	}
}

func TestBuildEmptyContext(t *testing.T) {
	record, err := Build(history.Context{ScientificName: "Betta splendens", SourceCountry: "Thailand"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if record.SampleSize != 0 || record.SuccessRate != nil {
		t.Fatalf("empty context record = %+v", record)
	}
	if LevelFor(record) != ConfidenceNoData {
		t.Fatalf("empty context should grade no_data")
	}
}

func TestArchive(t *testing.T) {
	store := blob.NewMemory()
	fixed := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	a := NewArchiver(store, func() time.Time { return fixed })

	key, err := a.Archive(context.Background(), sampleContext())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !strings.HasPrefix(key, "knowledge/betta-splendens/thailand/") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("unexpected key %q", key)
	}

	info, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get archived object: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if info.ContentType != "application/json" {
		t.Fatalf("ContentType = %q", info.ContentType)
	}

	var payload struct {
		ArchivedAt time.Time  `json:"archived_at"`
		Confidence Confidence `json:"confidence"`
		SampleSize int        `json:"sample_size"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !payload.ArchivedAt.Equal(fixed) {
		t.Fatalf("ArchivedAt = %v, want %v", payload.ArchivedAt, fixed)
	}
	// Two rated treatments at an average of 91.5 grades low on sample size.
	if payload.SampleSize != 2 || payload.Confidence != ConfidenceLow {
		t.Fatalf("payload = %+v", payload)
	}

	infos, err := a.List(context.Background(), "Betta splendens", "Thailand")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != key {
		t.Fatalf("List = %+v", infos)
	}
}

func TestArchiveDistinctKeys(t *testing.T) {
	store := blob.NewMemory()
	a := NewArchiver(store, nil)
	k1, err := a.Archive(context.Background(), sampleContext())
	if err != nil {
		t.Fatalf("first Archive: %v", err)
	}
	k2, err := a.Archive(context.Background(), sampleContext())
	if err != nil {
		t.Fatalf("second Archive: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("archive keys should be unique, both %q", k1)
	}
}
