package failsafe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Guard errors.
var (
	ErrInvalidPolicy  = errors.New("invalid failsafe policy")
	ErrInvalidPattern = errors.New("invalid failsafe pattern")
	ErrUnknownOutput  = errors.New("output not watched")
)

// Policy selects what happens to output data on failsafe.
type Policy uint8

const (
	// PolicyZero zero-fills the output.
	PolicyZero Policy = iota

	// PolicyHold keeps the last received output.
	PolicyHold

	// PolicyPattern writes Config.Pattern to the output.
	PolicyPattern
)

// String returns the policy name as used in configuration files.
func (p Policy) String() string {
	switch p {
	case PolicyZero:
		return "zero"
	case PolicyHold:
		return "hold"
	case PolicyPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name. An empty name selects PolicyZero.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return PolicyZero, nil
	case "hold":
		return PolicyHold, nil
	case "pattern":
		return PolicyPattern, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// ParsePattern decodes a hex pattern; spaces and colons are ignored.
func ParsePattern(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return b, nil
}

// State is the failsafe state of one output assembly.
type State uint8

const (
	// StateInactive means no connection has driven the output yet.
	StateInactive State = iota

	// StateNormal means a connection is driving the output.
	StateNormal

	// StateFailsafe means the policy has been applied.
	StateFailsafe
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateNormal:
		return "NORMAL"
	case StateFailsafe:
		return "FAILSAFE"
	default:
		return "UNKNOWN"
	}
}

// Buffers is the access the guard needs to assembly data.
// *assembly.Store implements it.
type Buffers interface {
	Size(id uint16) int
	Fill(id uint16, b byte) error
	Write(id uint16, data []byte) error
}

// Config holds guard configuration.
type Config struct {
	Policy  Policy
	Pattern []byte
}

// Guard tracks the failsafe state of output assemblies.
type Guard struct {
	buffers Buffers
	policy  Policy
	pattern []byte
	states  map[uint16]State

	// Callbacks
	onStateChange   func(outputID uint16, oldState, newState State)
	onFailsafeEnter func(outputID uint16, policy Policy)
	onFailsafeExit  func(outputID uint16)
}

// NewGuard creates a guard writing through buffers.
func NewGuard(buffers Buffers, cfg Config) *Guard {
	return &Guard{
		buffers: buffers,
		policy:  cfg.Policy,
		pattern: append([]byte(nil), cfg.Pattern...),
		states:  make(map[uint16]State),
	}
}

// Policy returns the configured policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Watch starts tracking outputID. With PolicyPattern the pattern length must
// equal the output size.
func (g *Guard) Watch(outputID uint16) error {
	size := g.buffers.Size(outputID)
	if size < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownOutput, outputID)
	}
	if g.policy == PolicyPattern && len(g.pattern) != size {
		return fmt.Errorf("%w: output %d holds %d bytes, pattern has %d", ErrInvalidPattern, outputID, size, len(g.pattern))
	}
	if _, ok := g.states[outputID]; !ok {
		g.states[outputID] = StateInactive
	}
	return nil
}

// Watched reports whether outputID is tracked.
func (g *Guard) Watched(outputID uint16) bool {
	_, ok := g.states[outputID]
	return ok
}

// State returns the state of outputID. Unwatched outputs report StateInactive.
func (g *Guard) State(outputID uint16) State {
	return g.states[outputID]
}

// IsFailsafe returns true if outputID is in failsafe.
func (g *Guard) IsFailsafe(outputID uint16) bool {
	return g.states[outputID] == StateFailsafe
}

// Enter applies the policy to outputID. Unwatched outputs are ignored.
// Entering again while in failsafe reapplies nothing.
func (g *Guard) Enter(outputID uint16) error {
	old, ok := g.states[outputID]
	if !ok || old == StateFailsafe {
		return nil
	}

	var err error
	switch g.policy {
	case PolicyZero:
		err = g.buffers.Fill(outputID, 0)
	case PolicyPattern:
		err = g.buffers.Write(outputID, g.pattern)
	}
	if err != nil {
		return fmt.Errorf("apply %s policy to output %d: %w", g.policy, outputID, err)
	}

	g.states[outputID] = StateFailsafe
	if g.onStateChange != nil {
		g.onStateChange(outputID, old, StateFailsafe)
	}
	if g.onFailsafeEnter != nil {
		g.onFailsafeEnter(outputID, g.policy)
	}
	return nil
}

// Exit marks outputID as driven by a connection again.
func (g *Guard) Exit(outputID uint16) {
	old, ok := g.states[outputID]
	if !ok || old == StateNormal {
		return
	}

	g.states[outputID] = StateNormal
	if g.onStateChange != nil {
		g.onStateChange(outputID, old, StateNormal)
	}
	if old == StateFailsafe && g.onFailsafeExit != nil {
		g.onFailsafeExit(outputID)
	}
}

// Reset returns every watched output to StateInactive without touching data.
func (g *Guard) Reset() {
	for id, old := range g.states {
		if old == StateInactive {
			continue
		}
		g.states[id] = StateInactive
		if g.onStateChange != nil {
			g.onStateChange(id, old, StateInactive)
		}
	}
}

// OnStateChange sets a callback for state changes.
func (g *Guard) OnStateChange(fn func(outputID uint16, oldState, newState State)) {
	g.onStateChange = fn
}

// OnFailsafeEnter sets a callback for entering failsafe.
func (g *Guard) OnFailsafeEnter(fn func(outputID uint16, policy Policy)) {
	g.onFailsafeEnter = fn
}

// OnFailsafeExit sets a callback for leaving failsafe.
func (g *Guard) OnFailsafeExit(fn func(outputID uint16)) {
	g.onFailsafeExit = fn
}
