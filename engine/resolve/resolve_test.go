package resolve

import (
	"errors"
	"testing"
)

func cands() []Candidate {
	return []Candidate{
		{ID: "strike", Name: "Strike"},
		{ID: "heavy_blade", Name: "Heavy Blade"},
		{ID: "acid_slime", Name: "Acid Slime"},
		{ID: "spike_slime", Name: "Spike Slime"},
		{ID: "e1", Name: "Cultist"},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"exact id", "strike", "strike"},
		{"exact name, any case", "HEAVY BLADE", "heavy_blade"},
		{"partial word", "blade", "heavy_blade"},
		{"underscore normalization", "acid slime", "acid_slime"},
		{"opaque id by name", "cultist", "e1"},
		{"opaque id directly", "e1", "e1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.query, cands())
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, err := Resolve("dragon", cands())
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Name != "dragon" {
		t.Errorf("Name = %q, want dragon", nf.Name)
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	_, err := Resolve("slime", cands())
	var amb *AmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguityError, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("Candidates = %v, want 2", amb.Candidates)
	}
	want := "which slime? (Acid Slime, Spike Slime)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestResolve_ExactBeatsPartial(t *testing.T) {
	c := []Candidate{
		{ID: "a", Name: "Slime"},
		{ID: "b", Name: "Acid Slime"},
	}
	got, err := Resolve("slime", c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a" {
		t.Errorf("got %q, want a", got)
	}
}

func TestResolve_DuplicateNamesStayAmbiguous(t *testing.T) {
	c := []Candidate{
		{ID: "a", Name: "Slime"},
		{ID: "b", Name: "Slime"},
	}
	_, err := Resolve("slime", c)
	var amb *AmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguityError, got %v", err)
	}
}
