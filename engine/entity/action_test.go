package entity

import (
	"testing"

	"github.com/nathoo/rulecore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func damageAction(v any) *Action {
	return NewAction("damage", nil, nil, nil,
		types.EffectUnit{Key: "damage", Params: map[string]any{"value": v}},
		types.EffectUnit{Key: "say", Params: map[string]any{"text": "ouch"}},
	)
}

func TestNewAction_CopiesParams(t *testing.T) {
	tmpl := types.EffectUnit{Key: "damage", Params: map[string]any{"value": 7}}
	a := NewAction("damage", nil, nil, nil, tmpl)

	require.NoError(t, a.SetParam(0, "value", 1))
	assert.Equal(t, 7, tmpl.Params["value"])
}

func TestCancel_OnlyInBefore(t *testing.T) {
	a := damageAction(7)
	assert.ErrorIs(t, a.Cancel(), ErrCancelOutsideBefore)

	a.Advance(StageBefore)
	require.NoError(t, a.Cancel())
	assert.True(t, a.Cancelled())

	b := damageAction(7)
	b.Advance(StageAfter)
	assert.ErrorIs(t, b.Cancel(), ErrCancelOutsideBefore)
	assert.False(t, b.Cancelled())
}

func TestAdjustParam(t *testing.T) {
	a := damageAction(7)
	n, err := a.AdjustParam("damage", "value", -10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u, _ := a.Unit(0)
	assert.Equal(t, -3.0, u.Params["value"])
}

func TestAdjustParam_MissingCountsAsZero(t *testing.T) {
	a := NewAction("damage", nil, nil, nil, types.EffectUnit{Key: "damage"})
	_, err := a.AdjustParam("damage", "value", 2)
	require.NoError(t, err)
	u, _ := a.Unit(0)
	assert.Equal(t, 2.0, u.Params["value"])
}

func TestAdjustParam_NotNumber(t *testing.T) {
	a := damageAction("lots")
	_, err := a.AdjustParam("damage", "value", 1)
	assert.ErrorIs(t, err, ErrNotNumber)
}

func TestScaleParam(t *testing.T) {
	a := damageAction(6)
	_, err := a.ScaleParam("damage", "value", 0.5)
	require.NoError(t, err)
	u, _ := a.Unit(0)
	assert.Equal(t, 3.0, u.Params["value"])
}

func TestSealedAfterDone(t *testing.T) {
	a := damageAction(7)
	a.Advance(StageDone)

	assert.ErrorIs(t, a.SetInfo("x", 1), ErrSealed)
	assert.ErrorIs(t, a.SetParam(0, "value", 1), ErrSealed)
	_, err := a.AdjustParam("damage", "value", 1)
	assert.ErrorIs(t, err, ErrSealed)
	assert.ErrorIs(t, a.SetParent(NewAction("x", nil, nil, nil)), ErrSealed)

	// Side effects stay open.
	a.CollectSideEffect(func() {})
	assert.Equal(t, 1, a.PendingSideEffects())
}

func TestSetParam_OutOfRange(t *testing.T) {
	a := damageAction(7)
	assert.ErrorIs(t, a.SetParam(5, "value", 1), ErrNoUnit)
}

func TestUnits_ReturnsCopies(t *testing.T) {
	a := damageAction(7)
	units := a.Units()
	units[0].Params["value"] = 100

	u, _ := a.Unit(0)
	assert.Equal(t, 7, u.Params["value"])
}

func TestDrainSideEffects_ExactlyOnce(t *testing.T) {
	a := damageAction(7)
	var order []int
	a.CollectSideEffect(func() { order = append(order, 1) })
	a.CollectSideEffect(func() {
		order = append(order, 2)
		a.CollectSideEffect(func() { order = append(order, 3) })
	})
	a.CollectSideEffect(nil)

	assert.Equal(t, 3, a.DrainSideEffects())
	assert.Equal(t, 0, a.DrainSideEffects())
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDepth(t *testing.T) {
	root := damageAction(1)
	child := damageAction(1)
	grand := damageAction(1)
	child.SetParent(root)
	grand.SetParent(child)

	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 2, grand.Depth())
	assert.Same(t, child, grand.Parent())
}

func TestScope_Close(t *testing.T) {
	s := NewScope("battle")
	a, b := damageAction(1), damageAction(2)
	ran := 0
	a.CollectSideEffect(func() { ran++ })
	b.CollectSideEffect(func() { ran++ })
	b.CollectSideEffect(func() { ran++ })
	s.Adopt(a)
	s.Adopt(b)

	assert.Equal(t, 3, s.Pending())
	assert.Equal(t, 3, s.Close())
	assert.Equal(t, 0, s.Close())
	assert.Equal(t, 3, ran)
	assert.True(t, s.Closed())

	late := damageAction(3)
	late.CollectSideEffect(func() { ran++ })
	s.Adopt(late)
	assert.Equal(t, 4, ran)
}
