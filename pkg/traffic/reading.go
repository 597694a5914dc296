// Package traffic provides real-time congestion readings for coordinates.
package traffic

import (
	"context"
	"time"
)

// Level describes congestion severity at a location.
type Level string

// Congestion levels, ordered from lightest to heaviest. Unknown means no
// reading could be obtained; the safety filter treats it as unsafe.
const (
	LevelVeryLow  Level = "very_low"
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelSevere   Level = "severe"
	LevelUnknown  Level = "unknown"
)

// Recommendation is the visit-timing advice derived from a reading.
type Recommendation string

const (
	VisitNow  Recommendation = "visit_now"
	VisitSoon Recommendation = "visit_soon"
	PlanLater Recommendation = "plan_later"
	AvoidNow  Recommendation = "avoid_now"
)

// CrowdLevel estimates on-site crowding.
type CrowdLevel string

const (
	CrowdLow      CrowdLevel = "low"
	CrowdModerate CrowdLevel = "moderate"
	CrowdHigh     CrowdLevel = "high"
	CrowdVeryHigh CrowdLevel = "very_high"
)

// Reading is one traffic observation for a location. Readings are volatile:
// cache them for minutes, not tens of minutes.
type Reading struct {
	Timestamp           time.Time      `json:"timestamp"`
	Level               Level          `json:"level"`
	Recommendation      Recommendation `json:"recommendation"`
	CrowdLevel          CrowdLevel     `json:"crowd_level"`
	CongestionScore     float64        `json:"congestion_score"`
	RecommendationScore float64        `json:"recommendation_score"`
}

// Provider fetches a reading for coordinates. Implementations may fail or
// time out; callers degrade to ConservativeDefault rather than surfacing
// the error.
type Provider interface {
	FlowReading(ctx context.Context, lat, lon float64) (*Reading, error)
}

// ConservativeDefault is the substitute reading applied when a lookup times
// out or fails: moderate congestion with neutral advice, so a degraded
// cluster survives the safety filter without being promoted.
func ConservativeDefault() *Reading {
	return &Reading{
		Level:               LevelModerate,
		CongestionScore:     0.5,
		Recommendation:      VisitSoon,
		RecommendationScore: 0.5,
		CrowdLevel:          CrowdModerate,
		Timestamp:           time.Now(),
	}
}

// LevelForScore maps a congestion score in [0,1] to a Level.
func LevelForScore(score float64) Level {
	switch {
	case score < 0.15:
		return LevelVeryLow
	case score < 0.30:
		return LevelLow
	case score < 0.55:
		return LevelModerate
	case score < 0.75:
		return LevelHigh
	default:
		return LevelSevere
	}
}

// RecommendationForScore maps a congestion score to visit-timing advice
// and a normalized advice score (1 is "go now").
func RecommendationForScore(score float64) (Recommendation, float64) {
	switch {
	case score < 0.30:
		return VisitNow, 1 - score
	case score < 0.50:
		return VisitSoon, 1 - score
	case score < 0.75:
		return PlanLater, 1 - score
	default:
		return AvoidNow, 1 - score
	}
}

// crowdForScore estimates crowding from congestion plus hour of day: midday
// and early evening bump the estimate one step.
func crowdForScore(score float64, hour int) CrowdLevel {
	busy := (hour >= 11 && hour <= 13) || (hour >= 17 && hour <= 19)
	switch {
	case score < 0.25:
		if busy {
			return CrowdModerate
		}
		return CrowdLow
	case score < 0.50:
		if busy {
			return CrowdHigh
		}
		return CrowdModerate
	case score < 0.75:
		if busy {
			return CrowdVeryHigh
		}
		return CrowdHigh
	default:
		return CrowdVeryHigh
	}
}
