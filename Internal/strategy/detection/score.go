package detection

import "math"

// Leg is the swing between two consecutive pivots.
type Leg struct {
	From      PivotPoint `json:"from"`
	To        PivotPoint `json:"to"`
	Amplitude float64    `json:"amplitude"`
	// Ratio is Amplitude over the previous leg's amplitude, 0 when either is flat.
	Ratio       float64 `json:"ratio"`
	Contracting bool    `json:"contracting"`
}

type Score struct {
	Legs        []Leg
	Contracting int
	Ratio       float64
}

// ScoreContraction measures each leg against its predecessor. A leg no larger than
// the one before it counts as contracting; flat legs never do.
func ScoreContraction(pivots []PivotPoint) Score {
	if len(pivots) < 2 {
		return Score{}
	}

	legs := make([]Leg, 0, len(pivots)-1)
	contracting := 0
	for i := 0; i+1 < len(pivots); i++ {
		from, to := pivots[i], pivots[i+1]
		leg := Leg{
			From:      from,
			To:        to,
			Amplitude: math.Max(from.Price, to.Price) - math.Min(from.Price, to.Price),
		}
		if n := len(legs); n > 0 {
			prev := legs[n-1].Amplitude
			if prev > 0 && leg.Amplitude > 0 {
				leg.Ratio = leg.Amplitude / prev
				leg.Contracting = leg.Amplitude <= prev
			}
		}
		if leg.Contracting {
			contracting++
		}
		legs = append(legs, leg)
	}

	score := Score{Legs: legs, Contracting: contracting}
	if len(legs) > 1 {
		score.Ratio = float64(contracting) / float64(len(legs)-1)
	}
	return score
}
