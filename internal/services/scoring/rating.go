package scoring

import "trustscan/internal/domain"

// Band lower bounds. Scores at or above a bound fall into that band.
const (
	NeutralFrom    = 25
	SuspiciousFrom = 50
	MaliciousFrom  = 75
)

// RatingFor maps a risk score to its trust band. Out-of-range scores are
// clamped first so the mapping is total.
func RatingFor(score int) domain.TrustRating {
	switch s := clamp(score); {
	case s >= MaliciousFrom:
		return domain.RatingMalicious
	case s >= SuspiciousFrom:
		return domain.RatingSuspicious
	case s >= NeutralFrom:
		return domain.RatingNeutral
	default:
		return domain.RatingTrusted
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
