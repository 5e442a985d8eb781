package nvdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/object"
	"github.com/eipdev/eipdev-go/pkg/qos"
	"github.com/eipdev/eipdev-go/pkg/tcpip"
)

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nv"))

	_, found, err := s.LoadQoS()
	require.NoError(t, err)
	assert.False(t, found)

	q, ip := qos.New(), tcpip.New()
	require.NoError(t, Restore(s, q, ip))
	assert.Equal(t, qos.Defaults(), q.Values())
	assert.Equal(t, tcpip.Defaults(), ip.Values())
}

func TestRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	qv := qos.Defaults()
	qv.DSCPUrgent = 12
	require.NoError(t, s.SaveQoS(qv))

	tv := tcpip.Defaults()
	tv.HostName = "adapter-1"
	tv.EncapsulationInactivityTimeout = 600
	require.NoError(t, s.SaveTCPIP(tv))

	q, ip := qos.New(), tcpip.New()
	require.NoError(t, Restore(s, q, ip))
	assert.Equal(t, qv, q.Values())
	assert.Equal(t, tv, ip.Values())
}

func TestCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.SaveQoS(qos.Defaults()))

	path := filepath.Join(dir, QoSFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec Record
	require.NoError(t, cbor.Unmarshal(data, &rec))
	rec.Payload[len(rec.Payload)-1] ^= 0x01
	data, err = cbor.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, _, err = s.LoadQoS()
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(path, []byte("not cbor"), 0644))
	_, _, err = s.LoadQoS()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	data, err := cbor.Marshal(Record{Version: 99})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, TCPIPFile), data, 0644))

	_, _, err = NewStore(dir).LoadTCPIP()
	assert.ErrorIs(t, err, ErrVersion)
}

func TestSetCallbacksPersist(t *testing.T) {
	s := NewStore(t.TempDir())
	q, ip := qos.New(), tcpip.New()

	d := object.NewDictionary()
	require.NoError(t, d.AddClass(q.Class))
	require.NoError(t, d.AddClass(ip.Class))
	require.NoError(t, d.InsertGetSetCallback(cip.ClassQoS, QoSSetCallback(s, q), object.NvData))
	require.NoError(t, d.InsertGetSetCallback(cip.ClassTCPIPInterface, TCPIPSetCallback(s, ip), object.NvData))

	require.NoError(t, d.SetAttributeSingle(cip.ClassQoS, 1, qos.AttrDSCPExplicit, []byte{9}))
	require.NoError(t, d.SetAttributeSingle(cip.ClassTCPIPInterface, 1, tcpip.AttrEncapsulationInactivityTimeout, []byte{30, 0}))

	qv, found, err := s.LoadQoS()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint8(9), qv.DSCPExplicit)

	tv, found, err := s.LoadTCPIP()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint16(30), tv.EncapsulationInactivityTimeout)

	// A rejected set does not reach storage.
	err = d.SetAttributeSingle(cip.ClassQoS, 1, qos.AttrDSCPExplicit, []byte{200})
	assert.Equal(t, cip.StatusInvalidAttributeValue, cip.StatusOf(err))
	qv, _, err = s.LoadQoS()
	require.NoError(t, err)
	assert.Equal(t, uint8(9), qv.DSCPExplicit)
}

func TestSaveAllAndClear(t *testing.T) {
	s := NewStore(t.TempDir())
	q, ip := qos.New(), tcpip.New()
	require.NoError(t, SaveAll(s, q, ip))

	_, found, err := s.LoadTCPIP()
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.Clear())
	_, found, err = s.LoadTCPIP()
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, s.Clear())
}
