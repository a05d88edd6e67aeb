package app

import "math"

const (
	basePoints      = 10
	timeBonusFactor = 0.5
	streakBonus     = 2
)

// Award computes the points for one answer and the streak that follows it.
// timeRemaining is the value captured at the moment of submission.
func Award(correct bool, timeRemaining, streak int) (points, nextStreak int) {
	if !correct {
		return 0, 0
	}
	if timeRemaining < 0 {
		timeRemaining = 0
	}
	timeBonus := int(math.Floor(float64(timeRemaining) * timeBonusFactor))
	return basePoints + timeBonus + streak*streakBonus, streak + 1
}
