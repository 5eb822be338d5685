package polls

import (
	"math"

	"github.com/civic-connect/portal/internal/models"
)

// ComputeTally turns a count snapshot into per-option shares. Each share is
// 100*votes/total rounded to one decimal place on its own, so options with equal
// counts always show equal shares and the sum may drift from 100 by rounding.
func ComputeTally(counts []OptionCount) ([]models.OptionTally, int) {
	total := 0
	for _, c := range counts {
		total += c.Votes
	}
	out := make([]models.OptionTally, len(counts))
	for i, c := range counts {
		out[i] = models.OptionTally{OptionID: c.Option.ID, Label: c.Option.Label, Votes: c.Votes}
		if total > 0 {
			out[i].Percentage = math.Round(float64(c.Votes)*1000/float64(total)) / 10
		}
	}
	return out, total
}
