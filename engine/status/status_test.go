package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_NoModifiers(t *testing.T) {
	s := New("strength", 3)
	assert.Equal(t, 3.0, s.Value())
	assert.Equal(t, 3.0, s.Base())
}

func TestValue_FoldOrder(t *testing.T) {
	s := New("attack", 10)

	// Registered out of fold order on purpose: function, mul, add.
	_, err := s.Add(Modifier{Kind: Func, Func: func(v float64) float64 { return v - 1 }})
	require.NoError(t, err)
	_, err = s.Add(Modifier{Kind: Mul, Value: 2})
	require.NoError(t, err)
	_, err = s.Add(Modifier{Kind: Add, Value: 5})
	require.NoError(t, err)

	// (10 + 5) * 2 - 1
	assert.Equal(t, 29.0, s.Value())
}

func TestValue_FunctionsInRegistrationOrder(t *testing.T) {
	s := New("block", 4)
	s.Add(Modifier{Kind: Func, Func: func(v float64) float64 { return v * 3 }})
	s.Add(Modifier{Kind: Func, Func: func(v float64) float64 { return v + 1 }})

	assert.Equal(t, 13.0, s.Value())
}

func TestValue_Layers(t *testing.T) {
	s := New("max_health", 50)
	s.Add(Modifier{Layer: LayerCurrent, Kind: Mul, Value: 2})
	s.Add(Modifier{Layer: LayerBase, Kind: Add, Value: 10})

	assert.Equal(t, 60.0, s.Base())
	assert.Equal(t, 120.0, s.Value())
}

func TestAbsolute_ReevaluatesEveryRead(t *testing.T) {
	bonus := 1.0
	s := New("draw", 5)
	s.Add(Modifier{Kind: Add, ValueFunc: func() float64 { return bonus }})

	assert.Equal(t, 6.0, s.Value())
	bonus = 3
	assert.Equal(t, 8.0, s.Value())
}

func TestSnapshot_FreezesContribution(t *testing.T) {
	bonus := 1.0
	s := New("draw", 5)
	s.Add(Modifier{Kind: Add, Mode: Snapshot, ValueFunc: func() float64 { return bonus }})

	bonus = 3
	assert.Equal(t, 6.0, s.Value())
}

func TestSnapshot_StaticAddAndMul(t *testing.T) {
	s := New("armor", 5)
	_, err := s.Add(Modifier{Kind: Add, Mode: Snapshot, Value: 3})
	require.NoError(t, err)
	assert.Equal(t, 8.0, s.Value())

	_, err = s.Add(Modifier{Kind: Mul, Mode: Snapshot, Value: 2})
	require.NoError(t, err)
	assert.Equal(t, 16.0, s.Value())
}

func TestSnapshot_MulFreezesFactor(t *testing.T) {
	factor := 2.0
	s := New("block", 5)
	_, err := s.Add(Modifier{Kind: Mul, Mode: Snapshot, ValueFunc: func() float64 { return factor }})
	require.NoError(t, err)

	factor = 10
	assert.Equal(t, 10.0, s.Value())
}

func TestSnapshot_FunctionFrozenAsDelta(t *testing.T) {
	s := New("speed", 10)
	_, err := s.Add(Modifier{Kind: Func, Mode: Snapshot, Func: func(v float64) float64 { return v * 2 }})
	require.NoError(t, err)

	// Frozen at +10; later base changes do not rescale it.
	s.SetBase(20)
	assert.Equal(t, 30.0, s.Value())
}

func TestRemove_Idempotent(t *testing.T) {
	s := New("armor", 2)
	h, err := s.Add(Modifier{Kind: Add, Value: 5})
	require.NoError(t, err)
	s.Add(Modifier{Kind: Add, Value: 1})

	assert.True(t, h.Release())
	assert.Equal(t, 3.0, s.Value())
	assert.False(t, h.Release())
	assert.Equal(t, 3.0, s.Value())
	assert.Equal(t, 1, s.Len())
}

func TestAdd_FuncWithoutFunction(t *testing.T) {
	s := New("armor", 2)
	_, err := s.Add(Modifier{Kind: Func})
	assert.ErrorIs(t, err, ErrNoFunc)
	assert.Equal(t, 0, s.Len())
}

func TestValue_ReentrantModifierDoesNotCorruptFold(t *testing.T) {
	s := New("focus", 1)
	var added bool
	s.Add(Modifier{Kind: Add, ValueFunc: func() float64 {
		if !added {
			added = true
			s.Add(Modifier{Kind: Add, Value: 100})
		}
		return 1
	}})

	// The first read folds the list it started with.
	assert.Equal(t, 2.0, s.Value())
	assert.Equal(t, 102.0, s.Value())
}

func TestNoClampAtStatusLayer(t *testing.T) {
	s := New("hunger", 0)
	s.Add(Modifier{Kind: Add, Value: -7})
	assert.Equal(t, -7.0, s.Value())
}

func TestFlag(t *testing.T) {
	s := New("dead", 0)
	assert.False(t, s.Flag())
	h, _ := s.Add(Modifier{Kind: Add, Value: 1})
	assert.True(t, s.Flag())
	h.Release()
	assert.False(t, s.Flag())
}
