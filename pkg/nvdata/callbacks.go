package nvdata

import (
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/object"
	"github.com/eipdev/eipdev-go/pkg/qos"
	"github.com/eipdev/eipdev-go/pkg/tcpip"
)

// QoSSetCallback returns an NvData callback that persists q after each set.
func QoSSetCallback(s *Store, q *qos.Object) object.Callback {
	return func(_ *object.Instance, _ *object.Attribute, service cip.Service) error {
		if !service.IsSet() {
			return nil
		}
		return s.SaveQoS(q.Values())
	}
}

// TCPIPSetCallback returns an NvData callback that persists t after each set.
func TCPIPSetCallback(s *Store, t *tcpip.Object) object.Callback {
	return func(_ *object.Instance, _ *object.Attribute, service cip.Service) error {
		if !service.IsSet() {
			return nil
		}
		return s.SaveTCPIP(t.Values())
	}
}

// Restore loads persisted values into q and t. Objects without a record
// keep their current values.
func Restore(s *Store, q *qos.Object, t *tcpip.Object) error {
	qv, found, err := s.LoadQoS()
	if err != nil {
		return err
	}
	if found {
		if err := q.Restore(qv); err != nil {
			return err
		}
	}

	tv, found, err := s.LoadTCPIP()
	if err != nil {
		return err
	}
	if found {
		if err := t.Restore(tv); err != nil {
			return err
		}
	}
	return nil
}

// SaveAll persists the current values of q and t.
func SaveAll(s *Store, q *qos.Object, t *tcpip.Object) error {
	if err := s.SaveQoS(q.Values()); err != nil {
		return err
	}
	return s.SaveTCPIP(t.Values())
}
