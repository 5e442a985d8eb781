package object

// Flags describe what an attribute supports.
type Flags uint16

const (
	// FlagGetable allows Get services.
	FlagGetable Flags = 1 << iota

	// FlagSetable allows SetAttributeSingle.
	FlagSetable

	// FlagPreGet runs the class PreGet callback.
	FlagPreGet

	// FlagPostGet runs the class PostGet callback.
	FlagPostGet

	// FlagPreSet runs the class PreSet callback.
	FlagPreSet

	// FlagPostSet runs the class PostSet callback.
	FlagPostSet

	// FlagNvData runs the class NvData callback after a successful set.
	FlagNvData

	// FlagGetAndClear allows GetAndClear when the class supports it.
	FlagGetAndClear

	// Common combinations.

	// FlagGetSet is getable and setable.
	FlagGetSet = FlagGetable | FlagSetable

	// FlagGetSetNv is getable, setable and persisted.
	FlagGetSetNv = FlagGetSet | FlagNvData
)

// CanGet returns true if Get services are allowed.
func (f Flags) CanGet() bool { return f&FlagGetable != 0 }

// CanSet returns true if SetAttributeSingle is allowed.
func (f Flags) CanSet() bool { return f&FlagSetable != 0 }

// Has returns true if all bits of other are set.
func (f Flags) Has(other Flags) bool { return f&other == other }

// String returns the flags as a compact string.
func (f Flags) String() string {
	var s string
	if f.CanGet() {
		s += "G"
	}
	if f.CanSet() {
		s += "S"
	}
	if f&FlagNvData != 0 {
		s += "N"
	}
	if f&FlagGetAndClear != 0 {
		s += "C"
	}
	if s == "" {
		return "-"
	}
	return s
}

// AttributeMetadata describes an attribute's properties.
type AttributeMetadata struct {
	// ID is the attribute number within the instance.
	ID uint16

	// Name is the human-readable attribute name.
	Name string

	// Flags defines the allowed services and callbacks.
	Flags Flags

	// Description is a human-readable description.
	Description string
}

// Attribute is an attribute instance bound to application memory.
type Attribute struct {
	meta    AttributeMetadata
	binding Binding
}

// NewAttribute creates an attribute with the given metadata and binding.
func NewAttribute(meta AttributeMetadata, binding Binding) *Attribute {
	return &Attribute{meta: meta, binding: binding}
}

// ID returns the attribute ID.
func (a *Attribute) ID() uint16 {
	return a.meta.ID
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.meta.Name
}

// Flags returns the current flags.
func (a *Attribute) Flags() Flags {
	return a.meta.Flags
}

// AddFlags enables additional flags, e.g. to route an attribute through
// callbacks installed after the object was created.
func (a *Attribute) AddFlags(f Flags) {
	a.meta.Flags |= f
}

// Encode returns the attribute value in wire representation.
func (a *Attribute) Encode() []byte {
	return a.binding.Encode()
}

// Decode stores a new value from wire representation.
func (a *Attribute) Decode(data []byte) error {
	return a.binding.Decode(data)
}
