package services

import (
	"math/rand"
	"time"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// Suspicious event names recorded by the validator.
const (
	EventPositionBackward = "POSITION_BACKWARD"
	EventLargeSkip        = "LARGE_SKIP"
	EventSpeedAnomaly     = "SPEED_ANOMALY"
)

// ProgressConfig holds the anti-cheat thresholds. All values are env-driven
// with the documented defaults.
type ProgressConfig struct {
	BackwardMarginSec   int
	LargeSkipFraction   float64
	SpeedFactor         float64
	SuspiciousLimit     int
	CheckMinSec         int
	CheckMaxSec         int
	CompletionMarginSec int
	HeartbeatPauseSec   int64
	HeartbeatFailSec    int64
}

func LoadProgressConfig(log *logger.Logger) ProgressConfig {
	return ProgressConfig{
		BackwardMarginSec:   utils.GetEnvAsInt("TRAINING_BACKWARD_MARGIN_SEC", 2, log),
		LargeSkipFraction:   utils.GetEnvAsFloat("TRAINING_LARGE_SKIP_FRACTION", 0.05, log),
		SpeedFactor:         utils.GetEnvAsFloat("TRAINING_SPEED_FACTOR", 1.2, log),
		SuspiciousLimit:     utils.GetEnvAsInt("TRAINING_SUSPICIOUS_LIMIT", 3, log),
		CheckMinSec:         utils.GetEnvAsInt("TRAINING_CHECK_MIN_SEC", 180, log),
		CheckMaxSec:         utils.GetEnvAsInt("TRAINING_CHECK_MAX_SEC", 420, log),
		CompletionMarginSec: utils.GetEnvAsInt("TRAINING_COMPLETION_MARGIN_SEC", 2, log),
		HeartbeatPauseSec:   int64(utils.GetEnvAsInt("TRAINING_HEARTBEAT_PAUSE_SEC", 60, log)),
		HeartbeatFailSec:    int64(utils.GetEnvAsInt("TRAINING_HEARTBEAT_FAIL_SEC", 300, log)),
	}
}

// HeartbeatReport is one client progress report.
type HeartbeatReport struct {
	Position    int
	PlayedDelta int
	VideoState  string
	ClientTs    int64
}

// HeartbeatOutcome summarizes what the validator did with a report.
type HeartbeatOutcome struct {
	ValidDelta int
	Events     []string
	Failed     bool
}

// ApplyHeartbeat runs the anti-cheat rules in order against the in-memory
// session and mutates its counters. The caller persists afterwards. Rules:
// a backward jump past the margin rejects the delta; a skip larger than the
// configured fraction of the video zeroes it (the skipped region still counts
// toward total watch time); a delta faster than SpeedFactor times the elapsed
// wall clock is clamped to the elapsed time.
func ApplyHeartbeat(s *types.TrainingSession, r HeartbeatReport, videoDurationSec int, cfg ProgressConfig) HeartbeatOutcome {
	out := HeartbeatOutcome{}
	delta := r.PlayedDelta
	if delta < 0 {
		delta = 0
	}

	switch {
	case r.Position < s.LastPosition-cfg.BackwardMarginSec:
		out.Events = append(out.Events, EventPositionBackward)
		s.SuspiciousEventCount++
		delta = 0
	case float64(r.Position-s.LastPosition) > cfg.LargeSkipFraction*float64(videoDurationSec):
		out.Events = append(out.Events, EventLargeSkip)
		s.SuspiciousEventCount++
		delta = 0
	default:
		if s.LastHeartbeatTs != nil {
			elapsed := r.ClientTs - *s.LastHeartbeatTs
			if elapsed < 0 {
				elapsed = 0
			}
			if float64(delta) > cfg.SpeedFactor*float64(elapsed) {
				out.Events = append(out.Events, EventSpeedAnomaly)
				s.SuspiciousEventCount++
				delta = int(elapsed)
			}
		}
	}

	s.ValidWatchSec += delta
	out.ValidDelta = delta
	if r.Position > s.LastPosition {
		s.TotalWatchSec += r.Position - s.LastPosition
	}
	s.LastPosition = r.Position
	ts := r.ClientTs
	s.LastHeartbeatTs = &ts
	if r.VideoState != "" {
		s.VideoState = r.VideoState
	}

	if s.SuspiciousEventCount >= cfg.SuspiciousLimit {
		s.Status = types.SessionStatusFailed
		s.FailureReason = types.FailureTooManySuspiciousEvents
		out.Failed = true
	}
	return out
}

// SessionComplete reports whether the session meets both completion
// conditions: the playhead reached the end (within the margin) and enough
// valid watch time accumulated.
func SessionComplete(s *types.TrainingSession, videoDurationSec int, requiredPercent float64, cfg ProgressConfig) bool {
	if s.LastPosition < videoDurationSec-cfg.CompletionMarginSec {
		return false
	}
	return float64(s.ValidWatchSec) >= requiredPercent*float64(videoDurationSec)
}

// CheckDue reports whether a random presence check is due: the next check
// lands a uniformly random interval between CheckMinSec and CheckMaxSec after
// the later of session start and the previous check.
func CheckDue(s *types.TrainingSession, now time.Time, cfg ProgressConfig) bool {
	if s.Status != types.SessionStatusInLearning {
		return false
	}
	anchor := s.StartedAt
	if s.LastCheckAt != nil && (anchor == nil || s.LastCheckAt.After(*anchor)) {
		anchor = s.LastCheckAt
	}
	if anchor == nil {
		return false
	}
	window := cfg.CheckMaxSec - cfg.CheckMinSec
	due := cfg.CheckMinSec
	if window > 0 {
		due += rand.Intn(window + 1)
	}
	return now.Sub(*anchor) >= time.Duration(due)*time.Second
}
