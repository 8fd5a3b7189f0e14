package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsSortableULID(t *testing.T) {
	a, b := New(), New()
	_, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a[:10], b[:10]) // timestamp prefix
}

func TestNewRecordID_IsUUID(t *testing.T) {
	u, err := uuid.Parse(NewRecordID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), u.Version())
}
