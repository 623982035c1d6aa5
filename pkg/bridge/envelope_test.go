package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	t.Run("keeps a caller-assigned id", func(t *testing.T) {
		env, err := NewEnvelope(map[string]any{"x": 1}, "m1")
		require.NoError(t, err)
		assert.Equal(t, "m1", env.ID)
		assert.Greater(t, env.Timestamp, int64(0))
		assert.JSONEq(t, `{"x":1}`, string(env.Data))
	})

	t.Run("generates an id when none is given", func(t *testing.T) {
		a, err := NewEnvelope("x", "")
		require.NoError(t, err)
		b, err := NewEnvelope("x", "")
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("rejects unmarshalable data", func(t *testing.T) {
		_, err := NewEnvelope(make(chan int), "m1")
		assert.Error(t, err)
	})
}

func TestEnvelopeValidate(t *testing.T) {
	valid := Envelope{ID: "m1", Timestamp: 1}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&Envelope{Timestamp: 1}).Validate())
	assert.Error(t, (&Envelope{ID: "m1"}).Validate())
}

func TestEnvelopeKey(t *testing.T) {
	a := Envelope{ID: "m1", Timestamp: 100}
	b := Envelope{ID: "m1", Timestamp: 100}
	c := Envelope{ID: "m1", Timestamp: 101}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.GreaterOrEqual(t, a.Key(), int32(0))
}
