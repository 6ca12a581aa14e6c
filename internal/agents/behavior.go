// Decision rules for citizens and cops. Everything here is a pure function of
// its arguments; perception (counting what is visible) happens in the engine.
package agents

import (
	"math"
	"math/rand"
)

// Grievance is hardship discounted by the regime's legitimacy.
func Grievance(hardship, legitimacy float64) float64 {
	return hardship * (1 - legitimacy)
}

// ArrestProbability estimates the chance of arrest from visible cops and
// visible actives: 1 − exp(−k·⌊C/A⌋). With no actives in view the ratio is
// undefined and the configured floor is used instead.
func ArrestProbability(cops, actives int, k, floor float64) float64 {
	if actives <= 0 {
		return floor
	}
	ratio := float64(cops / actives) // integer division: ⌊C/A⌋
	return 1 - math.Exp(-k*ratio)
}

// NetRisk is the citizen's discounted fear of arrest.
func NetRisk(riskAversion, arrestProb float64, maxJailTerm int) float64 {
	return riskAversion * arrestProb * float64(maxJailTerm)
}

// SocialPressure raises grievance by the share of active social neighbors,
// weighted by influence. Zero influence or no neighbors adds nothing.
func SocialPressure(activeNeighbors, neighbors int, influence float64) float64 {
	if influence <= 0 || neighbors == 0 {
		return 0
	}
	return influence * float64(activeNeighbors) / float64(neighbors)
}

// Decide returns the citizen's next state. Activation needs grievance minus
// net risk to strictly exceed the threshold; equality stays quiescent.
func Decide(grievance, netRisk, threshold float64) State {
	if grievance-netRisk > threshold {
		return Active
	}
	return Quiescent
}

// DrawJailTerm picks a sentence: uniform in [1, max], exactly max when
// deterministic, and 0 when max is 0.
func DrawJailTerm(rng *rand.Rand, max int, deterministic bool) int {
	if max <= 0 {
		return 0
	}
	if deterministic {
		return max
	}
	return rng.Intn(max) + 1
}

// ServeJail advances a jailed citizen by one tick: decrement (saturating at
// zero), then report whether the term is finished. A zero-length term is
// finished on the first call.
func ServeJail(c *Citizen) bool {
	if c.JailTerm > 0 {
		c.JailTerm--
	}
	return c.JailTerm == 0
}
