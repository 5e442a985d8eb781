package object

import (
	"errors"
	"fmt"
	"sort"

	"github.com/eipdev/eipdev-go/pkg/cip"
)

// Dictionary errors.
var (
	ErrDuplicateClass     = errors.New("duplicate class")
	ErrDuplicateInstance  = errors.New("duplicate instance")
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	ErrInvalidInstance    = errors.New("invalid instance number")
	ErrUnknownClass       = errors.New("unknown class")
	ErrInvalidCallback    = errors.New("invalid callback kind")
)

// Dictionary holds every class exposed by the device.
type Dictionary struct {
	classes map[cip.ClassCode]*Class
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{classes: make(map[cip.ClassCode]*Class)}
}

// AddClass registers c.
func (d *Dictionary) AddClass(c *Class) error {
	if _, exists := d.classes[c.code]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, c.code)
	}
	d.classes[c.code] = c
	return nil
}

// Class returns the class for code.
func (d *Dictionary) Class(code cip.ClassCode) (*Class, bool) {
	c, ok := d.classes[code]
	return c, ok
}

// Classes returns all classes ordered by code.
func (d *Dictionary) Classes() []*Class {
	out := make([]*Class, 0, len(d.classes))
	for _, c := range d.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}

// InsertGetSetCallback installs cb as the kind callback of class code.
func (d *Dictionary) InsertGetSetCallback(code cip.ClassCode, cb Callback, kind CallbackKind) error {
	c, ok := d.classes[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClass, code)
	}
	if kind.Flag() == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCallback, kind)
	}
	c.SetCallback(kind, cb)
	return nil
}

// resolve finds the addressed attribute or returns the CIP path error.
func (d *Dictionary) resolve(code cip.ClassCode, instance, attribute uint16, service cip.Service) (*Class, *Instance, *Attribute, error) {
	c, ok := d.classes[code]
	if !ok {
		return nil, nil, nil, cip.Err(cip.StatusPathDestinationUnknown)
	}
	if !c.Supports(service) {
		return nil, nil, nil, cip.Err(cip.StatusServiceNotSupported)
	}
	inst, ok := c.instances[instance]
	if !ok {
		return nil, nil, nil, cip.Err(cip.StatusObjectDoesNotExist)
	}
	attr, ok := inst.attributes[attribute]
	if !ok {
		return nil, nil, nil, cip.Err(cip.StatusAttributeNotSupported)
	}
	return c, inst, attr, nil
}

// GetAttributeSingle returns the encoded value of an attribute, running the
// PreGet and PostGet callbacks around the read.
func (d *Dictionary) GetAttributeSingle(code cip.ClassCode, instance, attribute uint16) ([]byte, error) {
	return d.get(code, instance, attribute, cip.ServiceGetAttributeSingle)
}

// GetAndClear returns the encoded value of an attribute. The PostGet callback
// receives ServiceGetAndClear and is expected to clear the value. Only
// attributes flagged FlagGetAndClear accept the service.
func (d *Dictionary) GetAndClear(code cip.ClassCode, instance, attribute uint16) ([]byte, error) {
	return d.get(code, instance, attribute, cip.ServiceGetAndClear)
}

func (d *Dictionary) get(code cip.ClassCode, instance, attribute uint16, service cip.Service) ([]byte, error) {
	c, inst, attr, err := d.resolve(code, instance, attribute, service)
	if err != nil {
		return nil, err
	}
	if !attr.Flags().CanGet() {
		return nil, cip.Err(cip.StatusAttributeNotSupported)
	}
	if service == cip.ServiceGetAndClear && !attr.Flags().Has(FlagGetAndClear) {
		return nil, cip.Err(cip.StatusServiceNotSupported)
	}
	if err := c.run(PreGet, inst, attr, service); err != nil {
		return nil, callbackError(err, cip.StatusDeviceStateConflict)
	}
	data := attr.Encode()
	if err := c.run(PostGet, inst, attr, service); err != nil {
		return nil, callbackError(err, cip.StatusDeviceStateConflict)
	}
	return data, nil
}

// SetAttributeSingle decodes data into an attribute, running PreSet before
// and PostSet then NvData after the write.
func (d *Dictionary) SetAttributeSingle(code cip.ClassCode, instance, attribute uint16, data []byte) error {
	service := cip.ServiceSetAttributeSingle
	c, inst, attr, err := d.resolve(code, instance, attribute, service)
	if err != nil {
		return err
	}
	if !attr.Flags().CanSet() {
		return cip.Err(cip.StatusAttributeNotSettable)
	}
	if err := c.run(PreSet, inst, attr, service); err != nil {
		return callbackError(err, cip.StatusDeviceStateConflict)
	}
	if err := attr.Decode(data); err != nil {
		return callbackError(err, cip.StatusInvalidAttributeValue)
	}
	if err := c.run(PostSet, inst, attr, service); err != nil {
		return callbackError(err, cip.StatusInvalidAttributeValue)
	}
	if err := c.run(NvData, inst, attr, service); err != nil {
		return callbackError(err, cip.StatusDeviceStateConflict)
	}
	return nil
}

// callbackError keeps CIP status errors and tags anything else with fallback.
func callbackError(err error, fallback cip.Status) error {
	var se *cip.StatusError
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%w: %w", cip.Err(fallback), err)
}
