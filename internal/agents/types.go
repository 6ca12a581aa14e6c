// Package agents provides the citizen and cop data model, the seeded
// spawner, and the pure decision rules of the civil violence model.
package agents

import (
	"fmt"

	"github.com/talgya/civil-violence/internal/world"
)

// AgentID is a unique identifier shared by the grid and the social graph.
type AgentID uint64

// Kind tags the two agent variants.
type Kind uint8

const (
	KindCitizen Kind = iota
	KindCop
)

func (k Kind) String() string {
	switch k {
	case KindCitizen:
		return "citizen"
	case KindCop:
		return "cop"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// State is a citizen's behavioral state.
type State uint8

const (
	Quiescent State = iota // Default: not rebelling
	Active                 // Openly rebelling, visible to cops
	Jailed                 // Off the grid, serving a term
)

var stateNames = [...]string{"QUIESCENT", "ACTIVE", "JAILED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("invalid state %d", uint8(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Agent is one schedulable participant. The engine dispatches on the
// concrete type; there are exactly two variants.
type Agent interface {
	AgentID() AgentID
	Kind() Kind
}

// Citizen is a member of the general population. Its position is owned by
// the world field and its social ties by the graph; the record only carries
// the attributes the decision rules read.
type Citizen struct {
	ID AgentID `json:"id"`

	// Fixed at creation.
	Hardship     float64 `json:"hardship"`      // 0.0–1.0 perceived hardship
	RiskAversion float64 `json:"risk_aversion"` // 0.0–1.0
	Threshold    float64 `json:"threshold"`     // grievance-minus-risk needed to go active
	Vision       int     `json:"vision"`        // radius in cells

	State    State       `json:"state"`
	JailTerm int         `json:"jail_term_remaining"` // meaningful only while Jailed
	JailedAt uint64      `json:"jailed_at,omitempty"` // tick of the last arrest
	LastPos  world.Coord `json:"last_pos"`            // where the citizen was arrested
}

func (c *Citizen) AgentID() AgentID { return c.ID }
func (c *Citizen) Kind() Kind       { return KindCitizen }

// Cop is an enforcement agent. Cops never change state and are never removed.
type Cop struct {
	ID     AgentID `json:"id"`
	Vision int     `json:"vision"`
}

func (c *Cop) AgentID() AgentID { return c.ID }
func (c *Cop) Kind() Kind       { return KindCop }
