package pylint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	inst := parseProbeOutput("2.4.3\n/usr/lib/python3/site-packages/pylint\n")
	assert.Equal(t, "2.4.3", inst.Version)
	assert.Equal(t, "/usr/lib/python3/site-packages/pylint", inst.Location)
	assert.True(t, inst.Supported)

	inst = parseProbeOutput("")
	assert.Equal(t, "Unknown", inst.Version)
	assert.Equal(t, "Unknown", inst.Location)
	assert.False(t, inst.Supported)
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		v    string
		want bool
	}{
		{"1.9.5", false},
		{"2.0.0", true},
		{"2.4.3", true},
		{"3.3.1", true},
		{"3.0.0a5", true},
		{"Unknown", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupported(tt.v), tt.v)
	}
}

func TestProbe(t *testing.T) {
	interp := fakeInterpreter(t, `echo 3.2.7; echo /opt/pylint`)
	inst, err := Probe(context.Background(), interp)
	require.NoError(t, err)
	assert.Equal(t, Installation{Version: "3.2.7", Location: "/opt/pylint", Supported: true}, inst)
}

func TestProbe_Missing(t *testing.T) {
	interp := fakeInterpreter(t, `echo "ModuleNotFoundError: No module named 'pylint'" >&2; exit 1`)
	inst, err := Probe(context.Background(), interp)
	assert.ErrorIs(t, err, ErrProbeFailed)
	assert.Equal(t, "Unknown", inst.Version)
}
