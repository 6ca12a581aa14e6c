package agents

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
)

func TestGrievance(t *testing.T) {
	if g := Grievance(0.8, 0.25); math.Abs(g-0.6) > 1e-12 {
		t.Fatalf("expected 0.6, got %f", g)
	}
	if g := Grievance(1, 1); g != 0 {
		t.Fatalf("full legitimacy should remove grievance, got %f", g)
	}
}

func TestArrestProbability(t *testing.T) {
	if p := ArrestProbability(3, 0, 2.3, 0.05); p != 0.05 {
		t.Fatalf("no actives in view: expected floor 0.05, got %f", p)
	}
	// ⌊3/4⌋ = 0 → no perceived risk even with cops around.
	if p := ArrestProbability(3, 4, 2.3, 0.05); p != 0 {
		t.Fatalf("expected 0 when actives outnumber cops, got %f", p)
	}
	want := 1 - math.Exp(-2.3*2)
	if p := ArrestProbability(5, 2, 2.3, 0.05); math.Abs(p-want) > 1e-12 {
		t.Fatalf("expected %f, got %f", want, p)
	}
}

func TestNetRisk(t *testing.T) {
	if n := NetRisk(0.5, 0.5, 10); n != 2.5 {
		t.Fatalf("expected 2.5, got %f", n)
	}
	if n := NetRisk(0.9, 0.9, 0); n != 0 {
		t.Fatalf("zero jail term means zero risk, got %f", n)
	}
}

func TestDecide_ThresholdIsStrict(t *testing.T) {
	// G = 0.5 × (1 − 0.5) = 0.25 exactly; N = 0.
	g := Grievance(0.5, 0.5)
	n := NetRisk(0, 0.7, 30)
	if s := Decide(g, n, 0.25); s != Quiescent {
		t.Fatalf("G − N equal to threshold must stay quiescent, got %s", s)
	}
	if s := Decide(g, n, 0.2); s != Active {
		t.Fatalf("G − N above threshold must activate, got %s", s)
	}
}

func TestSocialPressure(t *testing.T) {
	if p := SocialPressure(2, 4, 0); p != 0 {
		t.Fatalf("zero influence must add nothing, got %f", p)
	}
	if p := SocialPressure(0, 0, 1); p != 0 {
		t.Fatalf("no neighbors must add nothing, got %f", p)
	}
	if p := SocialPressure(1, 4, 0.4); math.Abs(p-0.1) > 1e-12 {
		t.Fatalf("expected 0.1, got %f", p)
	}
}

func TestDrawJailTerm(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		term := DrawJailTerm(rng, 5, false)
		if term < 1 || term > 5 {
			t.Fatalf("term %d outside [1,5]", term)
		}
	}
	if term := DrawJailTerm(rng, 5, true); term != 5 {
		t.Fatalf("deterministic term should be 5, got %d", term)
	}
	if term := DrawJailTerm(rng, 0, false); term != 0 {
		t.Fatalf("max 0 should give 0, got %d", term)
	}
}

func TestServeJail(t *testing.T) {
	c := &Citizen{State: Jailed, JailTerm: 2}
	if ServeJail(c) {
		t.Fatal("term 2 should not finish after one tick")
	}
	if !ServeJail(c) {
		t.Fatal("term 2 should finish after two ticks")
	}

	zero := &Citizen{State: Jailed, JailTerm: 0}
	if !ServeJail(zero) || zero.JailTerm != 0 {
		t.Fatal("zero term should finish on the first call without going negative")
	}
}

func TestStateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		S State `json:"s"`
	}{Jailed})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"s":"JAILED"}` {
		t.Fatalf("unexpected encoding %s", b)
	}
	var s State
	if err := s.UnmarshalText([]byte("ACTIVE")); err != nil || s != Active {
		t.Fatalf("unmarshal: %v (%s)", err, s)
	}
}
