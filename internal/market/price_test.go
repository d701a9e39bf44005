package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGBMReplaysWithSameSeed(t *testing.T) {
	cfg := GBMConfig{InitialPrice: 100, Sigma: 0.01, Seed: 42}
	a := NewGBM(cfg)
	b := NewGBM(cfg)

	pathA := a.GeneratePath(500)
	pathB := b.GeneratePath(500)
	require.Len(t, pathA, 500)
	for i := range pathA {
		require.True(t, pathA[i].Equal(pathB[i]), "step %d: %s != %s", i, pathA[i], pathB[i])
	}
}

func TestGBMZeroVolIsFlat(t *testing.T) {
	g := NewGBM(GBMConfig{InitialPrice: 100, Seed: 1})
	for i := 0; i < 100; i++ {
		require.True(t, g.Step().Equal(d("100")))
	}
}

func TestGBMPureDriftCompounds(t *testing.T) {
	g := NewGBM(GBMConfig{InitialPrice: 100, Mu: 0.01, Seed: 1})
	var last float64
	for i := 0; i < 10; i++ {
		last = g.Step().InexactFloat64()
	}
	require.InEpsilon(t, 100*math.Exp(0.1), last, 1e-12)
}

func TestGBMLogReturnMoments(t *testing.T) {
	const sigma = 0.01
	g := NewGBM(GBMConfig{InitialPrice: 100, Sigma: sigma, Seed: 9})

	prev := g.CurrentPrice().InexactFloat64()
	const n = 20000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		next := g.Step().InexactFloat64()
		r := math.Log(next / prev)
		sum += r
		sumSq += r * r
		prev = next
	}

	mean := sum / n
	require.InDelta(t, -sigma*sigma/2, mean, 3e-4)

	variance := sumSq/n - mean*mean
	require.InDelta(t, sigma, math.Sqrt(variance), sigma*0.1)
}

func TestGBMResetRewinds(t *testing.T) {
	g := NewGBM(GBMConfig{InitialPrice: 100, Sigma: 0.05, Seed: 5})
	first := g.GeneratePath(100)

	g.Reset(5)
	require.True(t, g.CurrentPrice().Equal(d("100")))
	second := g.GeneratePath(100)

	for i := range first {
		require.True(t, first[i].Equal(second[i]))
	}
}

func TestGBMGeneratePathAdvancesState(t *testing.T) {
	g := NewGBM(GBMConfig{InitialPrice: 100, Sigma: 0.02, Seed: 3})
	path := g.GeneratePath(50)
	require.Len(t, path, 50)
	require.True(t, path[0].Equal(d("100")))
	require.True(t, path[49].Equal(g.CurrentPrice()))
	require.Nil(t, g.GeneratePath(0))

	for _, p := range path {
		require.True(t, p.Sign() > 0)
	}
}
