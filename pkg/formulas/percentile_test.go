package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileRank(t *testing.T) {
	raw := map[string]float64{"A": 10, "B": 20, "C": 30, "D": 40}
	ranks := PercentileRank(raw)

	assert.Len(t, ranks, 4)
	assert.Less(t, ranks["A"], ranks["B"])
	assert.Less(t, ranks["B"], ranks["C"])
	assert.Less(t, ranks["C"], ranks["D"])
	for _, v := range ranks {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestPercentileRankTiesAverage(t *testing.T) {
	raw := map[string]float64{"A": 10, "B": 10, "C": 30}
	ranks := PercentileRank(raw)

	assert.Equal(t, ranks["A"], ranks["B"], "tied raw values get the same averaged rank")
	assert.Less(t, ranks["A"], ranks["C"])
}

func TestPercentileRankSingleValue(t *testing.T) {
	raw := map[string]float64{"A": 42}
	ranks := PercentileRank(raw)
	assert.Equal(t, 50.0, ranks["A"])
}

func TestPercentileRankEmpty(t *testing.T) {
	ranks := PercentileRank(map[string]float64{})
	assert.Empty(t, ranks)
}

func TestInvertPercentile(t *testing.T) {
	assert.Equal(t, 100.0, InvertPercentile(0))
	assert.Equal(t, 0.0, InvertPercentile(100))
	assert.Equal(t, 75.0, InvertPercentile(25))
}
