package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var closes = []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}

func TestMA(t *testing.T) {
	ma, err := MA(closes, 5)
	assert.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)

	_, err = MA(closes, 0)
	assert.Error(t, err)
	_, err = MA(closes[:3], 5)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	ema, err := EMA([]float64{2, 4, 6, 8}, 3)
	require.NoError(t, err)
	// seed (2+4+6)/3 = 4, then (8-4)*0.5 + 4
	assert.InDelta(t, 6.0, ema, 1e-12)

	_, err = EMA(closes[:2], 3)
	assert.Error(t, err)
}

func TestCompute(t *testing.T) {
	ma, err := Compute("sma", closes, 5)
	require.NoError(t, err)
	assert.InDelta(t, 114.4, ma, 0.001)

	ema, err := Compute("ema", []float64{2, 4, 6, 8}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, ema, 1e-12)

	_, err = Compute("rsi", closes, 5)
	assert.Error(t, err)
	_, err = Compute("ma", closes[:2], 5)
	assert.Error(t, err)
}

func TestSimpleMAStreaming(t *testing.T) {
	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(closes[0])
		ma.Update(closes[1])
		assert.False(t, ma.Ready())

		ma.Update(closes[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 0.001)

		ma.Update(closes[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(1)
		ma.Update(2)
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		ma := NewMA(4)
		for _, c := range closes {
			ma.Update(c)
		}
		batch, err := MA(closes, 4)
		require.NoError(t, err)
		assert.InDelta(t, batch, ma.Value(), 1e-9)
	})
}

func TestExponentialMAStreaming(t *testing.T) {
	ema := NewEMA(5)
	assert.Equal(t, "EMA(5)", ema.Name())
	for i, c := range closes {
		ema.Update(c)
		assert.Equal(t, i >= 4, ema.Ready(), "after %d updates", i+1)
	}

	batch, err := EMA(closes, 5)
	require.NoError(t, err)
	assert.InDelta(t, batch, ema.Value(), 1e-9)

	ema.Reset()
	assert.False(t, ema.Ready())
	assert.Equal(t, 0.0, ema.Value())
}

func TestNew(t *testing.T) {
	ind, err := New("ema", 10)
	require.NoError(t, err)
	assert.Equal(t, "EMA(10)", ind.Name())

	ind, err = New("sma", 3)
	require.NoError(t, err)
	assert.Equal(t, "MA(3)", ind.Name())

	_, err = New("rsi", 14)
	assert.Error(t, err)
	_, err = New("ma", 0)
	assert.Error(t, err)
}
