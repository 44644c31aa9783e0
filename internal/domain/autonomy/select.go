// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package autonomy

// Candidate is a weighted selectable action.
type Candidate struct {
	Action Action
	Weight float64
}

// Weigh applies mood and intensity to a base weight. Intensity is 1-10 and
// scales disruptive actions linearly with 5 as neutral.
func Weigh(a Action, base float64, mood Mood, intensity int) float64 {
	if base <= 0 {
		return 0
	}
	w := base * mood.Multiplier(a)
	if a.Disruptive() {
		w *= float64(min(max(intensity, 1), 10)) / 5
	}
	return w
}

// Pick performs a cumulative-weight draw. roll must be in [0, 1). It reports
// false when the total weight is zero.
func Pick(cands []Candidate, roll float64) (Action, bool) {
	total := 0.0
	for _, c := range cands {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total <= 0 {
		return "", false
	}
	target := roll * total
	acc := 0.0
	var last Action
	for _, c := range cands {
		if c.Weight <= 0 {
			continue
		}
		acc += c.Weight
		last = c.Action
		if target < acc {
			return c.Action, true
		}
	}
	return last, true
}
