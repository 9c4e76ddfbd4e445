package phonetic_test

import (
	"testing"

	"github.com/Metzpapa/bleai/internal/transcript/phonetic"
)

func TestMatcher_SingleWordMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// "maridian" shares all Double Metaphone codes with "Meridian" (MRTN) and
	// scores well above the phonetic threshold on Jaro-Winkler.
	vocabulary := []string{"Meridian", "Kovacs", "Brightline Analytics Suite"}

	corrected, conf, matched := m.Match("maridian", vocabulary)
	if !matched {
		t.Fatalf("Match(%q, vocabulary): matched=false, want true", "maridian")
	}
	if corrected != "Meridian" {
		t.Errorf("Match(%q): corrected=%q, want %q", "maridian", corrected, "Meridian")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "maridian", conf)
	}
}

func TestMatcher_MultiWordTermMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	vocabulary := []string{"Brightline Analytics Suite", "Meridian", "Kovacs"}

	// The shared token "analytics" provides the phonetic overlap; the full
	// strings rank high on Jaro-Winkler despite two misheard words.
	corrected, conf, matched := m.Match("brightlime analytics sweet", vocabulary)
	if !matched {
		t.Fatalf("Match(%q, vocabulary): matched=false, want true", "brightlime analytics sweet")
	}
	if corrected != "Brightline Analytics Suite" {
		t.Errorf("Match(%q): corrected=%q, want %q", "brightlime analytics sweet", corrected, "Brightline Analytics Suite")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "brightlime analytics sweet", conf)
	}
}

func TestMatcher_FuzzyFallback(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// "tovacs" has no Double Metaphone overlap with "Kovacs" (TFKS vs KFKS)
	// but its Jaro-Winkler similarity clears the fuzzy threshold.
	corrected, _, matched := m.Match("tovacs", []string{"Kovacs"})
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true via fuzzy fallback", "tovacs")
	}
	if corrected != "Kovacs" {
		t.Errorf("Match(%q): corrected=%q, want %q", "tovacs", corrected, "Kovacs")
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	vocabulary := []string{"Meridian", "Kovacs"}

	corrected, conf, matched := m.Match("hello", vocabulary)
	if matched {
		t.Fatalf("Match(%q, vocabulary): matched=true, want false", "hello")
	}
	if corrected != "hello" {
		t.Errorf("Match(%q): corrected=%q, want original word %q", "hello", corrected, "hello")
	}
	if conf != 0 {
		t.Errorf("Match(%q): confidence=%f, want 0", "hello", conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	vocabulary := []string{"Meridian"}

	corrected, _, matched := m.Match("MERIDIAN", vocabulary)
	if !matched {
		t.Fatalf("Match(%q, vocabulary): matched=false, want true", "MERIDIAN")
	}
	// The canonical vocabulary casing must be returned.
	if corrected != "Meridian" {
		t.Errorf("Match(%q): corrected=%q, want %q", "MERIDIAN", corrected, "Meridian")
	}
}

func TestMatcher_ExactMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	vocabulary := []string{"Kovacs", "Meridian"}

	corrected, conf, matched := m.Match("kovacs", vocabulary)
	if !matched {
		t.Fatalf("Match(%q, vocabulary): matched=false, want true", "kovacs")
	}
	if corrected != "Kovacs" {
		t.Errorf("Match(%q): corrected=%q, want %q", "kovacs", corrected, "Kovacs")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.9 for near-exact match", "kovacs", conf)
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	// A near-perfect threshold rejects near-matches.
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	vocabulary := []string{"Meridian"}

	_, _, matched := m.Match("maridian", vocabulary)
	if matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches, got matched=true")
	}
}

func TestMatcher_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("meridian", nil)
	if matched {
		t.Fatal("Match with nil vocabulary should return matched=false")
	}
	if corrected != "meridian" {
		t.Errorf("corrected=%q, want original", corrected)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestMatcher_EmptyWord(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("", []string{"Meridian"})
	if matched {
		t.Fatal("Match with empty word should return matched=false")
	}
	if corrected != "" {
		t.Errorf("corrected=%q, want empty string", corrected)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestWithOptions(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.75),
		phonetic.WithFuzzyThreshold(0.90),
	)
	if m == nil {
		t.Fatal("New returned nil")
	}
}
