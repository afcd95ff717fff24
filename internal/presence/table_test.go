package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindResolve(t *testing.T) {
	tbl := NewTable()

	_, ok := tbl.Resolve("patient-1")
	assert.False(t, ok)

	_, replaced := tbl.Bind("patient-1", "c1")
	assert.False(t, replaced)

	conn, ok := tbl.Resolve("patient-1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn)
	assert.Equal(t, 1, tbl.Len())
}

func TestRebindKeepsMostRecent(t *testing.T) {
	tbl := NewTable()
	tbl.Bind("patient-1", "c1")

	prev, replaced := tbl.Bind("patient-1", "c2")
	assert.True(t, replaced)
	assert.Equal(t, "c1", prev)

	conn, _ := tbl.Resolve("patient-1")
	assert.Equal(t, "c2", conn)

	// Stale connection going away must not remove the fresh binding.
	_, ok := tbl.Unbind("c1")
	assert.False(t, ok)
	conn, ok = tbl.Resolve("patient-1")
	require.True(t, ok)
	assert.Equal(t, "c2", conn)
}

func TestBindSameConnectionIsIdempotent(t *testing.T) {
	tbl := NewTable()
	tbl.Bind("doctor-9", "c1")

	_, replaced := tbl.Bind("doctor-9", "c1")
	assert.False(t, replaced)
	assert.Equal(t, 1, tbl.Len())
}

func TestUnbind(t *testing.T) {
	tbl := NewTable()
	tbl.Bind("doctor-9", "c1")

	participant, ok := tbl.Unbind("c1")
	require.True(t, ok)
	assert.Equal(t, "doctor-9", participant)

	_, ok = tbl.Resolve("doctor-9")
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}

func TestUnbindNeverBound(t *testing.T) {
	tbl := NewTable()

	_, ok := tbl.Unbind("ghost")
	assert.False(t, ok)
}

func TestRebindConnectionToOtherParticipant(t *testing.T) {
	tbl := NewTable()
	tbl.Bind("patient-1", "c1")
	tbl.Bind("doctor-9", "c1")

	_, ok := tbl.Resolve("patient-1")
	assert.False(t, ok)
	conn, ok := tbl.Resolve("doctor-9")
	require.True(t, ok)
	assert.Equal(t, "c1", conn)
}
