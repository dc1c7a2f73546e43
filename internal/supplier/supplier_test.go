package supplier

import (
	"fmt"
	"testing"

	"shoalcore/pkg/domain"
)

type fakeRecords struct {
	shipments  []domain.Shipment
	treatments map[string][]domain.Treatment
	followups  map[string]domain.FollowupAssessment
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		treatments: make(map[string][]domain.Treatment),
		followups:  make(map[string]domain.FollowupAssessment),
	}
}

func (f *fakeRecords) ListShipments() []domain.Shipment { return f.shipments }

func (f *fakeRecords) ListTreatmentsForShipment(shipmentID string) []domain.Treatment {
	return f.treatments[shipmentID]
}

func (f *fakeRecords) FollowupForTreatment(treatmentID string) (domain.FollowupAssessment, bool) {
	fu, ok := f.followups[treatmentID]
	return fu, ok
}

// addShipment records a shipment with one treatment and an optional follow-up
// success rate.
func (f *fakeRecords) addShipment(source, species string, quantity int, rate *float64) {
	sid := fmt.Sprintf("ship-%d", len(f.shipments)+1)
	tid := "treat-" + sid
	f.shipments = append(f.shipments, domain.Shipment{
		Base:           domain.Base{ID: sid},
		Source:         source,
		ScientificName: species,
		Quantity:       quantity,
		VolumeLiters:   100,
	})
	f.treatments[sid] = []domain.Treatment{{Base: domain.Base{ID: tid}, ShipmentID: sid}}
	if rate != nil {
		f.followups[tid] = domain.FollowupAssessment{
			Base:        domain.Base{ID: "fu-" + tid},
			TreatmentID: tid,
			SuccessRate: rate,
		}
	}
}

func ptr(v float64) *float64 { return &v }

func TestRate(t *testing.T) {
	cases := []struct {
		rate   float64
		sample int
		want   string
	}{
		{95, 10, RatingExcellent},
		{90, 3, RatingExcellent},
		{85, 5, RatingGood},
		{75, 4, RatingFair},
		{60, 3, RatingPoor},
		{95, 2, RatingInsufficientData},
		{85, 0, RatingInsufficientData},
	}
	for _, tc := range cases {
		if got := Rate(tc.rate, tc.sample); got != tc.want {
			t.Fatalf("Rate(%v, %d) = %q, want %q", tc.rate, tc.sample, got, tc.want)
		}
	}
}

func TestStats(t *testing.T) {
	records := newFakeRecords()
	records.addShipment("Thailand", "Betta splendens", 50, ptr(96))
	records.addShipment("Thailand", "Betta splendens", 100, ptr(90))
	records.addShipment("Thailand", "Paracheirodon innesi", 200, ptr(84))

	a := NewAnalyzer(records)
	stats := a.Stats("Thailand")
	if stats.ShipmentCount != 3 {
		t.Fatalf("ShipmentCount = %d, want 3", stats.ShipmentCount)
	}
	if stats.AvgSuccessRate != 90.0 {
		t.Fatalf("AvgSuccessRate = %v, want 90.0", stats.AvgSuccessRate)
	}
	if stats.TotalFish != 350 {
		t.Fatalf("TotalFish = %d, want 350", stats.TotalFish)
	}
	if stats.SpeciesCount != 2 {
		t.Fatalf("SpeciesCount = %d, want 2", stats.SpeciesCount)
	}
	if stats.Rating != RatingExcellent {
		t.Fatalf("Rating = %q, want excellent", stats.Rating)
	}
}

func TestStatsNoData(t *testing.T) {
	a := NewAnalyzer(newFakeRecords())
	stats := a.Stats("Vietnam")
	if stats.Rating != RatingNoData || stats.ShipmentCount != 0 {
		t.Fatalf("Stats for unknown source = %+v", stats)
	}
}

func TestStatsSmallSampleInsufficient(t *testing.T) {
	records := newFakeRecords()
	records.addShipment("Singapore", "Betta splendens", 50, ptr(98))
	records.addShipment("Singapore", "Betta splendens", 50, ptr(95))

	stats := NewAnalyzer(records).Stats("Singapore")
	if stats.Rating != RatingInsufficientData {
		t.Fatalf("Rating = %q, want insufficient_data despite rate %v", stats.Rating, stats.AvgSuccessRate)
	}
}

func TestAnalyzePerformanceSorted(t *testing.T) {
	records := newFakeRecords()
	records.addShipment("Thailand", "Betta splendens", 50, ptr(95))
	records.addShipment("Vietnam", "Betta splendens", 50, ptr(70))
	records.addShipment("Singapore", "Betta splendens", 50, ptr(88))

	out := NewAnalyzer(records).AnalyzePerformance()
	if len(out) != 3 {
		t.Fatalf("got %d sources, want 3", len(out))
	}
	want := []string{"Thailand", "Singapore", "Vietnam"}
	for i, source := range want {
		if out[i].Source != source {
			t.Fatalf("position %d = %q, want %q", i, out[i].Source, source)
		}
	}
}

func TestBestSourceForSpecies(t *testing.T) {
	records := newFakeRecords()
	records.addShipment("Thailand", "Betta splendens", 50, ptr(94))
	records.addShipment("Vietnam", "Betta splendens", 50, ptr(80))
	records.addShipment("Brazil", "Paracheirodon axelrodi", 50, ptr(99))

	best, ok := NewAnalyzer(records).BestSourceForSpecies("Betta splendens")
	if !ok {
		t.Fatalf("expected a best source")
	}
	if best.Source != "Thailand" || best.AvgSuccessRate != 94.0 {
		t.Fatalf("best = %+v", best)
	}

	if _, ok := NewAnalyzer(records).BestSourceForSpecies("Pterophyllum scalare"); ok {
		t.Fatalf("unknown species should report no source")
	}
}

func TestCompareKeepsCallerOrder(t *testing.T) {
	records := newFakeRecords()
	records.addShipment("Thailand", "Betta splendens", 50, ptr(70))
	records.addShipment("Vietnam", "Betta splendens", 50, ptr(95))

	out := NewAnalyzer(records).Compare([]string{"Thailand", "Vietnam", "India"})
	if len(out) != 3 {
		t.Fatalf("got %d entries, want 3", len(out))
	}
	if out[0].Source != "Thailand" || out[1].Source != "Vietnam" {
		t.Fatalf("caller order not preserved: %+v", out)
	}
	if out[2].Rating != RatingNoData {
		t.Fatalf("missing source rating = %q, want no_data", out[2].Rating)
	}
}

func TestRecommendation(t *testing.T) {
	cases := []struct {
		rating string
		want   string
	}{
		{RatingExcellent, "Highly recommended supplier with excellent track record"},
		{RatingInsufficientData, "Insufficient data for recommendation - proceed with caution"},
		{RatingNoData, "No historical data available"},
	}
	for _, tc := range cases {
		if got := Recommendation(Stats{Rating: tc.rating}); got != tc.want {
			t.Fatalf("Recommendation(%q) = %q, want %q", tc.rating, got, tc.want)
		}
	}
}

func TestFollowupWithoutRateIgnored(t *testing.T) {
	records := newFakeRecords()
	records.addShipment("Malaysia", "Betta splendens", 50, ptr(90))
	records.addShipment("Malaysia", "Betta splendens", 50, nil)
	records.addShipment("Malaysia", "Betta splendens", 50, nil)

	stats := NewAnalyzer(records).Stats("Malaysia")
	if stats.AvgSuccessRate != 90.0 {
		t.Fatalf("AvgSuccessRate = %v, want 90.0 from the single rated follow-up", stats.AvgSuccessRate)
	}
	if stats.ShipmentCount != 3 {
		t.Fatalf("ShipmentCount = %d, want 3", stats.ShipmentCount)
	}
}
