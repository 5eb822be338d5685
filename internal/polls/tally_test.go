package polls

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civic-connect/portal/internal/models"
)

func counts(votes ...int) []OptionCount {
	out := make([]OptionCount, len(votes))
	for i, v := range votes {
		out[i] = OptionCount{Option: models.PollOption{ID: int64(i + 1), PollID: 1, Label: string(rune('A' + i))}, Votes: v}
	}
	return out
}

func percentages(tally []models.OptionTally) []float64 {
	out := make([]float64, len(tally))
	for i, o := range tally {
		out[i] = o.Percentage
	}
	return out
}

func sum(tally []models.OptionTally) float64 {
	total := 0.0
	for _, o := range tally {
		total += o.Percentage
	}
	return total
}

func TestComputeTallyBudgetPoll(t *testing.T) {
	tally, total := ComputeTally(counts(2, 1, 1, 0))

	assert.Equal(t, 4, total)
	assert.Equal(t, []float64{50.0, 25.0, 25.0, 0.0}, percentages(tally))
	assert.Equal(t, "A", tally[0].Label)
	assert.Equal(t, 2, tally[0].Votes)
}

func TestComputeTallyNoVotes(t *testing.T) {
	tally, total := ComputeTally(counts(0, 0, 0))

	assert.Equal(t, 0, total)
	assert.Equal(t, []float64{0, 0, 0}, percentages(tally))
}

func TestComputeTallyEqualCountsShowEqualShares(t *testing.T) {
	tally, total := ComputeTally(counts(1, 1, 1))

	assert.Equal(t, 3, total)
	assert.Equal(t, []float64{33.3, 33.3, 33.3}, percentages(tally))

	tally, _ = ComputeTally(counts(1, 1, 1, 1, 1, 1))
	assert.Equal(t, []float64{16.7, 16.7, 16.7, 16.7, 16.7, 16.7}, percentages(tally))
}

func TestComputeTallyRoundsEachShare(t *testing.T) {
	cases := [][]int{
		{1, 1, 1},
		{1, 2, 4},
		{7, 0, 3, 1, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1},
		{999, 1},
		{5},
	}
	for _, c := range cases {
		tally, total := ComputeTally(counts(c...))
		for i, o := range tally {
			want := math.Round(float64(c[i])*1000/float64(total)) / 10
			assert.Equal(t, want, o.Percentage, "%v option %d", c, i)
		}
		assert.InDelta(t, 100.0, sum(tally), 0.05*float64(len(c))+1e-9, "%v", c)
	}
}

func TestComputeTallySumStaysNearHundred(t *testing.T) {
	for _, c := range [][]int{{2, 1, 1, 0}, {1, 1, 1}, {1, 1, 1, 1, 1, 1, 1}, {1, 2, 4}, {3, 3, 1}} {
		tally, _ := ComputeTally(counts(c...))
		got := sum(tally)
		assert.True(t, got >= 99.9-1e-9 && got <= 100.1+1e-9, "%v sums to %v", c, got)
	}
}

func TestComputeTallyEmpty(t *testing.T) {
	tally, total := ComputeTally(nil)
	assert.Empty(t, tally)
	assert.Equal(t, 0, total)
}
