// Package bias turns a macro snapshot into a directional market bias.
package bias

import "github.com/deusflow/macrotracker/internal/macro"

type Label string

const (
	StrongBullish Label = "Strong Bullish"
	Bullish       Label = "Bullish"
	Neutral       Label = "Neutral"
	Bearish       Label = "Bearish"
	StrongBearish Label = "Strong Bearish"
)

// Result is derived solely from one snapshot.
type Result struct {
	Score   int      `json:"score"`
	Label   Label    `json:"label"`
	Factors []string `json:"factors"`
}

// Compute scores s. Every indicator contributes independently; an absent
// indicator never contributes because it fails every threshold test.
func Compute(s macro.Snapshot) Result {
	score := 0
	factors := []string{}

	add := func(delta int, factor string) {
		score += delta
		factors = append(factors, factor)
	}

	if s.CPI.Greater(3) {
		add(2, "High inflation (+2)")
	}

	if s.DollarIndex.Less(100) {
		add(1, "Weak dollar (+1)")
	} else if s.DollarIndex.Greater(105) {
		add(-1, "Strong dollar (-1)")
	}

	if s.FedRate.Less(2) {
		add(2, "Low Fed rates (+2)")
	}

	if s.TenYearYield.Less(3) {
		add(1, "Low yields (+1)")
	}

	if s.NonfarmPayrolls.Less(150000) {
		add(1, "Weak jobs (+1)")
	}

	return Result{Score: score, Label: LabelFor(score), Factors: factors}
}

// LabelFor maps a total score to its label.
func LabelFor(score int) Label {
	switch {
	case score >= 4:
		return StrongBullish
	case score >= 2:
		return Bullish
	case score <= -4:
		return StrongBearish
	case score <= -2:
		return Bearish
	default:
		return Neutral
	}
}
