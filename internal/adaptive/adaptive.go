// Package adaptive evolves a quiz's difficulty score from attempt history.
// Scores are 0..1; each difficulty tier clamps the score to its own band so
// a mercy_mode quiz can never drift into expert territory.
package adaptive

import (
	"math"

	"quizai/internal/models"
)

type band struct {
	min  float64
	base float64
	max  float64
}

var bands = map[models.Difficulty]band{
	models.DifficultyMercyMode:      {min: 0.1, base: 0.3, max: 0.5},
	models.DifficultyMentalWarfare:  {min: 0.4, base: 0.6, max: 0.8},
	models.DifficultyAbandonAllHope: {min: 0.7, base: 0.85, max: 1.0},
}

// windowSize is how many recent attempts influence the score.
const windowSize = 10

// recencyWeight is the per-step multiplier; the newest attempt in a full
// window weighs 1.5^9 times the oldest.
const recencyWeight = 1.5

// correctThreshold is the accuracy at which an attempt counts as a pass.
const correctThreshold = 0.7

// NextDifficulty computes the quiz's next difficulty score from attempt
// accuracies (each 0..1, oldest first). With no history the tier's base
// score is returned.
func NextDifficulty(difficulty models.Difficulty, accuracies []float64) float64 {
	b, ok := bands[difficulty]
	if !ok {
		b = bands[models.DifficultyMentalWarfare]
	}
	if len(accuracies) == 0 {
		return b.base
	}

	recent := accuracies
	if len(recent) > windowSize {
		recent = recent[len(recent)-windowSize:]
	}

	var weightedSum, weightTotal float64
	for i, acc := range recent {
		w := math.Pow(recencyWeight, float64(i))
		weightedSum += acc * w
		weightTotal += w
	}
	avg := weightedSum / weightTotal

	var adjustment float64
	switch {
	case avg > correctThreshold:
		adjustment = (avg - correctThreshold) * 0.5
	case avg < 0.3:
		adjustment = (avg - 0.3) * 0.5
	}

	next := b.base + adjustment + streakModifier(recent)
	return clamp(next, b.min, b.max)
}

// streakModifier nudges the score for sustained runs: three in a row moves
// it by 0.05, five in a row by 0.1, in the direction of the streak.
func streakModifier(accuracies []float64) float64 {
	streak := 0
	passing := false
	for i := len(accuracies) - 1; i >= 0; i-- {
		pass := accuracies[i] >= correctThreshold
		if i == len(accuracies)-1 {
			passing = pass
		}
		if pass != passing {
			break
		}
		streak++
	}

	var mod float64
	switch {
	case streak >= 5:
		mod = 0.1
	case streak >= 3:
		mod = 0.05
	}
	if !passing {
		mod = -mod
	}
	return mod
}

// Metrics summarizes a user's performance on one quiz.
type Metrics struct {
	OverallAccuracy float64 `json:"overallAccuracy"`
	RecentAccuracy  float64 `json:"recentAccuracy"`
	CurrentStreak   int     `json:"currentStreak"`
	Improving       bool    `json:"improving"`
}

// ComputeMetrics derives summary stats from attempt accuracies (oldest
// first). Improving compares the first and second halves of the recent
// window.
func ComputeMetrics(accuracies []float64) Metrics {
	var m Metrics
	if len(accuracies) == 0 {
		return m
	}

	var total float64
	for _, a := range accuracies {
		total += a
	}
	m.OverallAccuracy = total / float64(len(accuracies))

	recent := accuracies
	if len(recent) > windowSize {
		recent = recent[len(recent)-windowSize:]
	}
	var recentTotal float64
	for _, a := range recent {
		recentTotal += a
	}
	m.RecentAccuracy = recentTotal / float64(len(recent))

	for i := len(accuracies) - 1; i >= 0; i-- {
		if accuracies[i] < correctThreshold {
			break
		}
		m.CurrentStreak++
	}

	if len(recent) >= 4 {
		half := len(recent) / 2
		var first, second float64
		for _, a := range recent[:half] {
			first += a
		}
		for _, a := range recent[half:] {
			second += a
		}
		m.Improving = second/float64(len(recent)-half) > first/float64(half)
	}
	return m
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
