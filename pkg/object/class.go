package object

import (
	"fmt"
	"sort"

	"github.com/eipdev/eipdev-go/pkg/cip"
)

// Class is a CIP object class and its instances.
type Class struct {
	code      cip.ClassCode
	name      string
	revision  uint16
	instances map[uint16]*Instance
	callbacks map[CallbackKind]Callback
	services  map[cip.Service]bool
}

// NewClass creates a class supporting GetAttributeSingle and
// SetAttributeSingle.
func NewClass(code cip.ClassCode, revision uint16) *Class {
	return &Class{
		code:      code,
		name:      code.String(),
		revision:  revision,
		instances: make(map[uint16]*Instance),
		callbacks: make(map[CallbackKind]Callback),
		services: map[cip.Service]bool{
			cip.ServiceGetAttributeSingle: true,
			cip.ServiceSetAttributeSingle: true,
		},
	}
}

// Code returns the class code.
func (c *Class) Code() cip.ClassCode { return c.code }

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Revision returns the class revision.
func (c *Class) Revision() uint16 { return c.revision }

// SupportService enables an additional service on this class.
func (c *Class) SupportService(s cip.Service) {
	c.services[s] = true
}

// Supports reports whether the class accepts service s.
func (c *Class) Supports(s cip.Service) bool {
	return c.services[s]
}

// AddInstance creates instance number n.
func (c *Class) AddInstance(n uint16) (*Instance, error) {
	if n == 0 {
		return nil, fmt.Errorf("%w: instance 0 is the class itself", ErrInvalidInstance)
	}
	if _, exists := c.instances[n]; exists {
		return nil, fmt.Errorf("%w: %s instance %d", ErrDuplicateInstance, c.name, n)
	}
	inst := &Instance{
		class:      c,
		number:     n,
		attributes: make(map[uint16]*Attribute),
	}
	c.instances[n] = inst
	return inst, nil
}

// Instance returns instance n.
func (c *Class) Instance(n uint16) (*Instance, bool) {
	inst, ok := c.instances[n]
	return inst, ok
}

// Instances returns all instances ordered by number.
func (c *Class) Instances() []*Instance {
	out := make([]*Instance, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].number < out[j].number })
	return out
}

// SetCallback installs cb in the slot for kind, replacing any earlier one.
// A nil cb clears the slot.
func (c *Class) SetCallback(kind CallbackKind, cb Callback) {
	if cb == nil {
		delete(c.callbacks, kind)
		return
	}
	c.callbacks[kind] = cb
}

// Callback returns the callback installed for kind.
func (c *Class) Callback(kind CallbackKind) Callback {
	return c.callbacks[kind]
}

// run invokes the callback of kind if attr is flagged for it.
func (c *Class) run(kind CallbackKind, inst *Instance, attr *Attribute, service cip.Service) error {
	if attr.Flags()&kind.Flag() == 0 {
		return nil
	}
	cb := c.callbacks[kind]
	if cb == nil {
		return nil
	}
	return cb(inst, attr, service)
}

// Instance is one instance of a class.
type Instance struct {
	class      *Class
	number     uint16
	attributes map[uint16]*Attribute
}

// Class returns the owning class.
func (i *Instance) Class() *Class { return i.class }

// Number returns the instance number.
func (i *Instance) Number() uint16 { return i.number }

// AddAttribute attaches attr to the instance.
func (i *Instance) AddAttribute(attr *Attribute) error {
	if _, exists := i.attributes[attr.ID()]; exists {
		return fmt.Errorf("%w: %s/%d/%d", ErrDuplicateAttribute, i.class.name, i.number, attr.ID())
	}
	i.attributes[attr.ID()] = attr
	return nil
}

// Attribute returns attribute id.
func (i *Instance) Attribute(id uint16) (*Attribute, bool) {
	a, ok := i.attributes[id]
	return a, ok
}

// Attributes returns all attributes ordered by ID.
func (i *Instance) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(i.attributes))
	for _, a := range i.attributes {
		out = append(out, a)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID() < out[b].ID() })
	return out
}
