package attribution

import (
	"testing"

	"github.com/maastricht-university/meeting-transcription/features"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry(DefaultMatchThresholds())
	if id, ok := r.Match(*vec(50, 2000, 1)); ok {
		t.Errorf("expected no match on empty registry, got %v", id)
	}
}

func TestRegistryMatchScore(t *testing.T) {
	stored := *vec(50, 2000, 1.0)

	tests := []struct {
		name  string
		query features.Vector
		ok    bool
	}{
		{"all three agree", *vec(55, 2100, 1.1), true},
		{"frequency and energy", *vec(55, 2100, 2.0), true},
		{"frequency and ratio", *vec(55, 5000, 1.1), true},
		{"energy and ratio", *vec(90, 2100, 1.1), true},
		{"only frequency", *vec(55, 5000, 2.0), false},
		{"only ratio", *vec(90, 5000, 1.1), false},
		{"none", *vec(90, 5000, 2.0), false},
		{"frequency at threshold is not a point", *vec(65, 5000, 1.1), false},
	}

	r := NewRegistry(DefaultMatchThresholds())
	r.Register(1, stored)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := r.Match(tt.query)
			if ok != tt.ok {
				t.Fatalf("Match() ok = %v, want %v", ok, tt.ok)
			}
			if ok && id != 1 {
				t.Errorf("Match() = %v, want 1", id)
			}
		})
	}
}

func TestRegistryBestScoreWins(t *testing.T) {
	r := NewRegistry(DefaultMatchThresholds())
	r.Register(1, *vec(50, 2000, 1.0))
	r.Register(2, *vec(52, 2050, 3.0))
	r.Register(3, *vec(51, 2010, 1.05))

	// 1 and 3 both score 3; the lower id wins
	id, ok := r.Match(*vec(51, 2010, 1.0))
	if !ok || id != 1 {
		t.Errorf("Match() = %v, %v; want 1, true", id, ok)
	}

	id, ok = r.Match(*vec(52, 2050, 1.1))
	if !ok || id != 1 {
		t.Errorf("Match() = %v, %v; want 1, true", id, ok)
	}

	id, ok = r.Match(*vec(52, 2050, 3.05))
	if !ok || id != 2 {
		t.Errorf("Match() = %v, %v; want 2, true", id, ok)
	}
}

func TestRegistryTieBreakIsLowestID(t *testing.T) {
	r := NewRegistry(DefaultMatchThresholds())
	// registered out of order on purpose
	r.Register(5, *vec(50, 2000, 1.0))
	r.Register(2, *vec(50, 2000, 1.0))
	r.Register(9, *vec(50, 2000, 1.0))

	id, ok := r.Match(*vec(50, 2000, 1.0))
	if !ok || id != 2 {
		t.Errorf("Match() = %v, %v; want 2, true", id, ok)
	}

	fps := r.Fingerprints()
	if len(fps) != 3 || fps[0].Speaker != 2 || fps[1].Speaker != 5 || fps[2].Speaker != 9 {
		t.Errorf("unexpected fingerprint order: %+v", fps)
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	r := NewRegistry(DefaultMatchThresholds())
	r.Register(1, *vec(50, 2000, 1.0))
	r.Register(1, *vec(200, 9000, 5.0))

	if r.Len() != 1 {
		t.Fatalf("expected 1 speaker, got %d", r.Len())
	}
	if _, ok := r.Match(*vec(50, 2000, 1.0)); ok {
		t.Error("old fingerprint should have been replaced")
	}
	if id, ok := r.Match(*vec(200, 9000, 5.0)); !ok || id != 1 {
		t.Errorf("Match() = %v, %v; want 1, true", id, ok)
	}
}

func TestRegistryLooserRatio(t *testing.T) {
	th := DefaultMatchThresholds()
	th.Ratio = 0.3
	r := NewRegistry(th)
	r.Register(1, *vec(50, 2000, 1.0))

	// frequency agrees, energy does not, ratio is 0.25 away
	if _, ok := r.Match(*vec(55, 5000, 1.25)); !ok {
		t.Error("expected a match with ratio threshold 0.3")
	}

	strict := NewRegistry(DefaultMatchThresholds())
	strict.Register(1, *vec(50, 2000, 1.0))
	if _, ok := strict.Match(*vec(55, 5000, 1.25)); ok {
		t.Error("expected no match with ratio threshold 0.2")
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry(DefaultMatchThresholds())
	r.Register(1, *vec(50, 2000, 1.0))
	r.Reset()
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
	if _, ok := r.Match(*vec(50, 2000, 1.0)); ok {
		t.Error("expected no match after reset")
	}
}
