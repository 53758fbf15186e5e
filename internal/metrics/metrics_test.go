package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Messages.Inc()
	m.Messages.Inc()
	m.SessionPhase.Set(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SessionPhase))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "chattui_messages_total")
	assert.Contains(t, names, "chattui_session_phase")
	assert.Len(t, names, 7)
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestDiscardIsIndependent(t *testing.T) {
	a, b := Discard(), Discard()
	a.Reconnects.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Reconnects))
}
