package connpoint

import (
	"fmt"

	"github.com/eipdev/eipdev-go/pkg/assembly"
)

// Lookup resolves registered assembly instances. Satisfied by
// *assembly.Registry.
type Lookup interface {
	Lookup(id uint16) (assembly.Instance, bool)
}

var _ Lookup = (*assembly.Registry)(nil)

// Configurer receives validated points. The connection manager implements it.
type Configurer interface {
	ConfigureConnectionPoint(p Point) error
}

// Wiring validates and records connection points.
type Wiring struct {
	lookup Lookup
	target Configurer
	points []Point
	next   map[Role]int
}

// NewWiring creates a wiring that resolves ids through lookup and forwards
// points to target. target may be nil.
func NewWiring(lookup Lookup, target Configurer) *Wiring {
	return &Wiring{
		lookup: lookup,
		target: target,
		next:   make(map[Role]int),
	}
}

// Configure declares a connection point of role over the given assemblies.
// The config id may be shared by several points.
func (w *Wiring) Configure(role Role, outputID, inputID, configID uint16) error {
	slots := []struct {
		name string
		id   uint16
		dir  assembly.Direction
	}{
		{"output", outputID, role.outputDirection()},
		{"input", inputID, assembly.DirectionInput},
		{"config", configID, assembly.DirectionConfig},
	}

	for _, s := range slots {
		inst, ok := w.lookup.Lookup(s.id)
		if !ok {
			return fmt.Errorf("%w: %s %s assembly %d", ErrUnknownAssemblyID, role, s.name, s.id)
		}
		if inst.Direction != s.dir {
			return fmt.Errorf("%w: %s %s assembly %d is %s, want %s",
				ErrDirectionMismatch, role, s.name, s.id, inst.Direction, s.dir)
		}
	}

	p := Point{
		Role:     role,
		Index:    w.next[role],
		OutputID: outputID,
		InputID:  inputID,
		ConfigID: configID,
	}

	if w.target != nil {
		if err := w.target.ConfigureConnectionPoint(p); err != nil {
			return fmt.Errorf("configure %s: %w", p, err)
		}
	}

	w.points = append(w.points, p)
	w.next[role]++
	return nil
}

// Points returns the configured points in configuration order.
func (w *Wiring) Points() []Point {
	out := make([]Point, len(w.points))
	copy(out, w.points)
	return out
}
