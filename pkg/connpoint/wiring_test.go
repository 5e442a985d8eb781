package connpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eipdev/eipdev-go/pkg/assembly"
)

type pointSink struct {
	got []Point
}

func (s *pointSink) ConfigureConnectionPoint(p Point) error {
	s.got = append(s.got, p)
	return nil
}

func profileRegistry(t *testing.T) *assembly.Registry {
	t.Helper()
	reg := assembly.NewRegistry(nil)
	require.NoError(t, reg.Register(100, assembly.DirectionInput, make([]byte, 32), 32))
	require.NoError(t, reg.Register(150, assembly.DirectionOutput, make([]byte, 32), 32))
	require.NoError(t, reg.Register(151, assembly.DirectionConfig, make([]byte, 10), 10))
	require.NoError(t, reg.Register(152, assembly.DirectionHeartbeatInputOnly, nil, 0))
	require.NoError(t, reg.Register(153, assembly.DirectionHeartbeatListenOnly, nil, 0))
	return reg
}

func TestWiringProfile(t *testing.T) {
	sink := &pointSink{}
	w := NewWiring(profileRegistry(t), sink)

	require.NoError(t, w.Configure(RoleExclusiveOwner, 150, 100, 151))
	require.NoError(t, w.Configure(RoleInputOnly, 152, 100, 151))
	require.NoError(t, w.Configure(RoleListenOnly, 153, 100, 151))

	want := []Point{
		{Role: RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151},
		{Role: RoleInputOnly, OutputID: 152, InputID: 100, ConfigID: 151},
		{Role: RoleListenOnly, OutputID: 153, InputID: 100, ConfigID: 151},
	}
	assert.Equal(t, want, w.Points())
	assert.Equal(t, want, sink.got)
}

func TestWiringUnknownID(t *testing.T) {
	// Registration has not happened yet.
	w := NewWiring(assembly.NewRegistry(nil), nil)

	err := w.Configure(RoleExclusiveOwner, 150, 100, 151)
	assert.ErrorIs(t, err, ErrUnknownAssemblyID)
	assert.Empty(t, w.Points())

	// Partially registered: input missing.
	reg := assembly.NewRegistry(nil)
	require.NoError(t, reg.Register(150, assembly.DirectionOutput, make([]byte, 32), 32))
	require.NoError(t, reg.Register(151, assembly.DirectionConfig, make([]byte, 10), 10))
	w = NewWiring(reg, nil)
	err = w.Configure(RoleExclusiveOwner, 150, 100, 151)
	assert.ErrorIs(t, err, ErrUnknownAssemblyID)
	assert.Contains(t, err.Error(), "100")
}

func TestWiringDirectionMismatch(t *testing.T) {
	w := NewWiring(profileRegistry(t), nil)

	tests := []struct {
		name         string
		role         Role
		out, in, cfg uint16
	}{
		{"input only with data output", RoleInputOnly, 150, 100, 151},
		{"listen only with input-only heartbeat", RoleListenOnly, 152, 100, 151},
		{"owner with heartbeat output", RoleExclusiveOwner, 152, 100, 151},
		{"input and output swapped", RoleExclusiveOwner, 100, 150, 151},
		{"config slot holds input", RoleExclusiveOwner, 150, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Configure(tt.role, tt.out, tt.in, tt.cfg)
			assert.ErrorIs(t, err, ErrDirectionMismatch)
		})
	}
	assert.Empty(t, w.Points())
}

func TestWiringIndexPerRole(t *testing.T) {
	w := NewWiring(profileRegistry(t), nil)

	require.NoError(t, w.Configure(RoleListenOnly, 153, 100, 151))
	require.NoError(t, w.Configure(RoleListenOnly, 153, 100, 151))
	require.NoError(t, w.Configure(RoleExclusiveOwner, 150, 100, 151))

	points := w.Points()
	assert.Equal(t, 0, points[0].Index)
	assert.Equal(t, 1, points[1].Index)
	assert.Equal(t, 0, points[2].Index)
	assert.True(t, points[2].Matches(150, 100, 151))
	assert.False(t, points[2].Matches(150, 100, 152))
}

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleExclusiveOwner, RoleInputOnly, RoleListenOnly} {
		got, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	got, err := ParseRole(" lo ")
	require.NoError(t, err)
	assert.Equal(t, RoleListenOnly, got)

	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
