package assembly

import "fmt"

// Instance describes a registered assembly instance.
type Instance struct {
	ID        uint16
	Direction Direction
	Size      int
}

// Installer installs an assembly instance into the stack's object dictionary.
// This is the registry's only interaction with the dictionary.
type Installer interface {
	InstallAssembly(id uint16, data []byte) error
}

// Registry records the assembly instances declared by the application.
type Registry struct {
	installer Installer
	instances map[uint16]Instance
	order     []uint16

	// owners identifies registered buffers by their first byte.
	owners map[*byte]uint16
}

// NewRegistry creates a registry that installs instances through installer.
func NewRegistry(installer Installer) *Registry {
	return &Registry{
		installer: installer,
		instances: make(map[uint16]Instance),
		owners:    make(map[*byte]uint16),
	}
}

// Register declares assembly instance id backed by buf.
//
// Heartbeat assemblies pass a nil buf and size 0. size must equal len(buf).
// On success the instance is retrievable by id until teardown.
func (r *Registry) Register(id uint16, dir Direction, buf []byte, size int) error {
	if _, exists := r.instances[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	if size < 0 || len(buf) != size {
		return fmt.Errorf("%w: instance %d declared %d bytes, buffer holds %d", ErrSizeMismatch, id, size, len(buf))
	}

	var first *byte
	if len(buf) > 0 {
		first = &buf[0]
		if owner, taken := r.owners[first]; taken {
			return fmt.Errorf("%w: instance %d reuses buffer of %d", ErrBufferAliased, id, owner)
		}
	}

	if r.installer != nil {
		if err := r.installer.InstallAssembly(id, buf); err != nil {
			return fmt.Errorf("install assembly %d: %w", id, err)
		}
	}

	r.instances[id] = Instance{ID: id, Direction: dir, Size: size}
	r.order = append(r.order, id)
	if first != nil {
		r.owners[first] = id
	}
	return nil
}

// Lookup returns the instance registered under id.
func (r *Registry) Lookup(id uint16) (Instance, bool) {
	inst, ok := r.instances[id]
	return inst, ok
}

// Instances returns all instances in registration order.
func (r *Registry) Instances() []Instance {
	out := make([]Instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.instances[id])
	}
	return out
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	return len(r.order)
}
