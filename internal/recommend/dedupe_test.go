package recommend

import "testing"

func TestDedupeKeepsHighestScore(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", RelevanceScore: 0.5},
		{ID: "b", RelevanceScore: 0.9},
		{ID: "a", RelevanceScore: 0.8},
		{ID: "c", RelevanceScore: 0.3},
		{ID: "b", RelevanceScore: 0.1},
	}

	got := Dedupe(candidates)

	assertIDs(t, got, "a", "b", "c")
	if got[0].RelevanceScore != 0.8 {
		t.Errorf("a score = %v, want 0.8 (highest duplicate wins)", got[0].RelevanceScore)
	}
	if got[1].RelevanceScore != 0.9 {
		t.Errorf("b score = %v, want 0.9", got[1].RelevanceScore)
	}
}

func TestDedupeFirstSeenOrder(t *testing.T) {
	candidates := []Candidate{
		{ID: "z", RelevanceScore: 0.2},
		{ID: "a", RelevanceScore: 0.9},
		{ID: "z", RelevanceScore: 0.95},
	}

	got := Dedupe(candidates)

	// z keeps its first-seen position even though its survivor came
	// later.
	assertIDs(t, got, "z", "a")
	if got[0].RelevanceScore != 0.95 {
		t.Errorf("z score = %v, want 0.95", got[0].RelevanceScore)
	}
}

func TestDedupeEmpty(t *testing.T) {
	if got := Dedupe(nil); len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}

func TestDedupeNoDuplicates(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", RelevanceScore: 0.9},
		{ID: "b", RelevanceScore: 0.8},
	}

	got := Dedupe(candidates)
	assertIDs(t, got, "a", "b")
}
