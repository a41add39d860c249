package entity

import (
	"math/rand"
	"testing"

	"github.com/nathoo/rulecore/engine/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthEntity(start, maxHealth float64) (*Entity, *Current) {
	e := newTestEntity("player")
	e.AddStatus("max_health", maxHealth)
	c := NewCurrent("health", start, Fixed(0), StatusRef("max_health"))
	e.AddCurrent(c)
	return e, c
}

func TestChangeCurrent_ClampsToMin(t *testing.T) {
	e, _ := healthEntity(5, 10)

	v, err := e.ChangeCurrent("health", -2, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestChangeCurrent_ClampsToStatusMax(t *testing.T) {
	e, _ := healthEntity(5, 10)
	e.AddModifier("max_health", status.Modifier{Kind: status.Add, Value: 2})

	v, err := e.ChangeCurrent("health", 50, nil)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
}

func TestChangeCurrent_AllowOver(t *testing.T) {
	e, c := healthEntity(5, 10)
	c.AllowOverMax = true

	v, err := e.ChangeCurrent("health", 14, nil)
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)
}

func TestChangeCurrent_UnknownKey(t *testing.T) {
	e, c := healthEntity(5, 10)

	_, err := e.ChangeCurrent("mana", 3, nil)
	assert.ErrorIs(t, err, ErrUnknownCurrent)
	assert.Equal(t, 5.0, c.Value())
}

func TestChangeCurrent_MissingBoundStatus(t *testing.T) {
	e := newTestEntity("organ")
	e.AddCurrent(NewCurrent("mass", 1, Fixed(0), StatusRef("max_mass")))

	v, err := e.ChangeCurrent("mass", 40, nil)
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Equal(t, 40.0, v)
}

func TestChangeCurrent_MinFiresOncePerCrossing(t *testing.T) {
	e, c := healthEntity(5, 10)
	fired := 0
	c.OnReachMin = func(_ *Action, _ *Entity, _ *Current) { fired++ }

	e.ChangeCurrent("health", -2, nil)
	e.ChangeCurrent("health", -5, nil)
	e.ChangeCurrent("health", 0, nil)
	assert.Equal(t, 1, fired)

	e.ChangeCurrent("health", 3, nil)
	e.ChangeCurrent("health", 0, nil)
	assert.Equal(t, 2, fired)
}

func TestChangeCurrent_MaxFiresOncePerCrossing(t *testing.T) {
	e, c := healthEntity(5, 10)
	fired := 0
	c.OnReachMax = func(_ *Action, _ *Entity, _ *Current) { fired++ }

	e.ChangeCurrent("health", 10, nil)
	e.ChangeCurrent("health", 11, nil)
	assert.Equal(t, 1, fired)
}

func TestChangeCurrent_CallbackReceivesCause(t *testing.T) {
	e, c := healthEntity(5, 10)
	cause := NewAction("damage", nil, nil, e)
	var got *Action
	c.OnReachMin = func(a *Action, who *Entity, cur *Current) {
		got = a
		assert.Same(t, e, who)
		assert.Same(t, c, cur)
		assert.Equal(t, 0.0, cur.Value())
	}

	e.ChangeCurrent("health", 0, cause)
	assert.Same(t, cause, got)
}

func TestChangeCurrent_ReentrantFromCallback(t *testing.T) {
	e, c := healthEntity(5, 10)
	revived := 0
	c.OnReachMin = func(_ *Action, who *Entity, _ *Current) {
		revived++
		// Revive to above max: the nested call re-clamps on its own.
		v, err := who.ChangeCurrent("health", 99, nil)
		require.NoError(t, err)
		assert.Equal(t, 10.0, v)
	}

	v, err := e.ChangeCurrent("health", -3, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 10.0, c.Value())
	assert.Equal(t, 1, revived)
}

func TestChangeCurrent_BoundInvariant(t *testing.T) {
	e, c := healthEntity(20, 20)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		next := c.Value() + float64(r.Intn(41)-20)
		e.ChangeCurrent("health", next, nil)
		require.GreaterOrEqual(t, c.Value(), 0.0)
		require.LessOrEqual(t, c.Value(), 20.0)
	}
}

func TestAddToCurrent(t *testing.T) {
	e, c := healthEntity(5, 10)
	v, err := e.AddToCurrent("health", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, v)
	assert.Equal(t, 8.0, c.Value())

	_, err = e.AddToCurrent("block", 3, nil)
	assert.ErrorIs(t, err, ErrUnknownCurrent)
}
