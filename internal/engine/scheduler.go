package engine

import (
	"fmt"
	"math/rand"

	"github.com/talgya/civil-violence/internal/agents"
)

// Scheduler activates every agent exactly once per tick in a fresh random
// order (asynchronous random activation). The order is an explicit
// Fisher–Yates shuffle on the caller's stream, so equal seeds replay equal
// orders regardless of container iteration order.
type Scheduler struct {
	agents []agents.Agent
	order  []int
	visits []uint8
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add appends an agent. Agents are never removed; jailed citizens keep
// their turn.
func (sc *Scheduler) Add(a agents.Agent) {
	sc.agents = append(sc.agents, a)
}

// Len returns the number of scheduled agents.
func (sc *Scheduler) Len() int {
	return len(sc.agents)
}

// Shuffle returns this tick's activation order as indices in insertion order.
func (sc *Scheduler) Shuffle(rng *rand.Rand) []int {
	n := len(sc.agents)
	if cap(sc.order) < n {
		sc.order = make([]int, n)
	}
	order := sc.order[:n]
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Step shuffles and invokes act once per agent. A dropped or repeated turn
// is an invariant breach and panics.
func (sc *Scheduler) Step(rng *rand.Rand, act func(agents.Agent)) {
	order := sc.Shuffle(rng)

	if cap(sc.visits) < len(order) {
		sc.visits = make([]uint8, len(order))
	}
	visits := sc.visits[:len(order)]
	clear(visits)

	for _, i := range order {
		visits[i]++
		act(sc.agents[i])
	}

	for i, v := range visits {
		if v != 1 {
			panic(fmt.Sprintf("engine: agent %d activated %d times in one tick", sc.agents[i].AgentID(), v))
		}
	}
}
