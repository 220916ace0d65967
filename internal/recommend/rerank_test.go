package recommend

import (
	"math"
	"testing"
)

func TestRerankFormula(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", RelevanceScore: 0.8, Rating: 4.5, ReviewCount: 200},
	}

	got := Rerank(candidates)

	want := 0.8 + 0.1*4.5 + 0.001*200 // 1.45
	if math.Abs(got[0].FinalScore-want) > 1e-9 {
		t.Errorf("FinalScore = %v, want %v", got[0].FinalScore, want)
	}
}

func TestRerankSortsDescending(t *testing.T) {
	// Rating and review volume lift both b and c over a despite their
	// lower relevance: b = 0.75+0.5+0.3 = 1.55, c = 0.70+0.1+0.01 =
	// 0.81, a = 0.80.
	candidates := []Candidate{
		{ID: "a", RelevanceScore: 0.80, Rating: 0, ReviewCount: 0},
		{ID: "b", RelevanceScore: 0.75, Rating: 5, ReviewCount: 300},
		{ID: "c", RelevanceScore: 0.70, Rating: 1, ReviewCount: 10},
	}

	got := Rerank(candidates)

	assertIDs(t, got, "b", "c", "a")
}

func TestRerankStableOnTies(t *testing.T) {
	candidates := []Candidate{
		{ID: "first", RelevanceScore: 0.5},
		{ID: "second", RelevanceScore: 0.5},
		{ID: "third", RelevanceScore: 0.5},
	}

	got := Rerank(candidates)

	assertIDs(t, got, "first", "second", "third")
}

func TestRerankIdempotent(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", RelevanceScore: 0.9, Rating: 2, ReviewCount: 50},
		{ID: "b", RelevanceScore: 0.6, Rating: 5, ReviewCount: 900},
		{ID: "c", RelevanceScore: 0.7, Rating: 3, ReviewCount: 10},
	}

	once := Rerank(candidates)
	twice := Rerank(once)

	if len(once) != len(twice) {
		t.Fatalf("lengths differ: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID || once[i].FinalScore != twice[i].FinalScore {
			t.Errorf("position %d differs after rerun: %s/%v vs %s/%v",
				i, once[i].ID, once[i].FinalScore, twice[i].ID, twice[i].FinalScore)
		}
	}
}

func TestRerankEmptyInput(t *testing.T) {
	got := Rerank(nil)
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}

func TestRerankDoesNotMutateInput(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", RelevanceScore: 0.5, Rating: 4},
		{ID: "b", RelevanceScore: 0.9},
	}

	Rerank(candidates)

	if candidates[0].FinalScore != 0 || candidates[0].ID != "a" {
		t.Error("Rerank mutated its input slice")
	}
}
