package services

import (
	"testing"
	"time"

	"github.com/sitepass/sitepass-backend/internal/types"
)

func progressTestConfig() ProgressConfig {
	return ProgressConfig{
		BackwardMarginSec:   2,
		LargeSkipFraction:   0.05,
		SpeedFactor:         1.2,
		SuspiciousLimit:     3,
		CheckMinSec:         180,
		CheckMaxSec:         420,
		CompletionMarginSec: 2,
		HeartbeatPauseSec:   60,
		HeartbeatFailSec:    300,
	}
}

func TestApplyHeartbeatAcceptsNormalProgress(t *testing.T) {
	cfg := progressTestConfig()
	ts := int64(1000)
	s := &types.TrainingSession{
		Status:          types.SessionStatusInLearning,
		LastPosition:    100,
		ValidWatchSec:   100,
		TotalWatchSec:   100,
		LastHeartbeatTs: &ts,
	}

	out := ApplyHeartbeat(s, HeartbeatReport{
		Position:    110,
		PlayedDelta: 10,
		VideoState:  types.VideoStatePlaying,
		ClientTs:    1010,
	}, 600, cfg)

	if out.ValidDelta != 10 {
		t.Fatalf("ValidDelta = %d, want 10", out.ValidDelta)
	}
	if len(out.Events) != 0 {
		t.Fatalf("unexpected events: %v", out.Events)
	}
	if s.ValidWatchSec != 110 {
		t.Errorf("ValidWatchSec = %d, want 110", s.ValidWatchSec)
	}
	if s.TotalWatchSec != 110 {
		t.Errorf("TotalWatchSec = %d, want 110", s.TotalWatchSec)
	}
	if s.LastPosition != 110 {
		t.Errorf("LastPosition = %d, want 110", s.LastPosition)
	}
	if s.SuspiciousEventCount != 0 {
		t.Errorf("SuspiciousEventCount = %d, want 0", s.SuspiciousEventCount)
	}
}

func TestApplyHeartbeatRejectsBackwardJump(t *testing.T) {
	cfg := progressTestConfig()
	ts := int64(1000)
	s := &types.TrainingSession{
		Status:          types.SessionStatusInLearning,
		LastPosition:    200,
		ValidWatchSec:   200,
		LastHeartbeatTs: &ts,
	}

	out := ApplyHeartbeat(s, HeartbeatReport{
		Position:    150,
		PlayedDelta: 10,
		ClientTs:    1010,
	}, 600, cfg)

	if out.ValidDelta != 0 {
		t.Fatalf("ValidDelta = %d, want 0", out.ValidDelta)
	}
	if len(out.Events) != 1 || out.Events[0] != EventPositionBackward {
		t.Fatalf("Events = %v, want [%s]", out.Events, EventPositionBackward)
	}
	if s.ValidWatchSec != 200 {
		t.Errorf("ValidWatchSec = %d, want 200", s.ValidWatchSec)
	}
	if s.SuspiciousEventCount != 1 {
		t.Errorf("SuspiciousEventCount = %d, want 1", s.SuspiciousEventCount)
	}
	if s.LastPosition != 150 {
		t.Errorf("LastPosition = %d, want 150", s.LastPosition)
	}
}

func TestApplyHeartbeatToleratesSmallBackwardSeek(t *testing.T) {
	cfg := progressTestConfig()
	ts := int64(1000)
	s := &types.TrainingSession{
		Status:          types.SessionStatusInLearning,
		LastPosition:    100,
		ValidWatchSec:   100,
		LastHeartbeatTs: &ts,
	}

	// One second back is inside the two-second margin.
	out := ApplyHeartbeat(s, HeartbeatReport{
		Position:    99,
		PlayedDelta: 5,
		ClientTs:    1010,
	}, 600, cfg)

	if len(out.Events) != 0 {
		t.Fatalf("unexpected events: %v", out.Events)
	}
	if out.ValidDelta != 5 {
		t.Fatalf("ValidDelta = %d, want 5", out.ValidDelta)
	}
}

func TestApplyHeartbeatRejectsLargeSkipButCountsTotal(t *testing.T) {
	cfg := progressTestConfig()
	ts := int64(1000)
	s := &types.TrainingSession{
		Status:          types.SessionStatusInLearning,
		LastPosition:    60,
		ValidWatchSec:   60,
		TotalWatchSec:   60,
		LastHeartbeatTs: &ts,
	}

	// A 190-second jump on a 600-second video is far past the 5% threshold.
	out := ApplyHeartbeat(s, HeartbeatReport{
		Position:    250,
		PlayedDelta: 10,
		ClientTs:    1010,
	}, 600, cfg)

	if out.ValidDelta != 0 {
		t.Fatalf("ValidDelta = %d, want 0", out.ValidDelta)
	}
	if len(out.Events) != 1 || out.Events[0] != EventLargeSkip {
		t.Fatalf("Events = %v, want [%s]", out.Events, EventLargeSkip)
	}
	if s.ValidWatchSec != 60 {
		t.Errorf("ValidWatchSec = %d, want 60", s.ValidWatchSec)
	}
	if s.TotalWatchSec != 250 {
		t.Errorf("TotalWatchSec = %d, want 250", s.TotalWatchSec)
	}
}

func TestApplyHeartbeatClampsSpeedAnomaly(t *testing.T) {
	cfg := progressTestConfig()
	ts := int64(1000)
	s := &types.TrainingSession{
		Status:          types.SessionStatusInLearning,
		LastPosition:    100,
		ValidWatchSec:   100,
		LastHeartbeatTs: &ts,
	}

	// 20 claimed seconds over 10 wall-clock seconds exceeds the 1.2x factor;
	// the delta clamps to the elapsed time.
	out := ApplyHeartbeat(s, HeartbeatReport{
		Position:    110,
		PlayedDelta: 20,
		ClientTs:    1010,
	}, 600, cfg)

	if out.ValidDelta != 10 {
		t.Fatalf("ValidDelta = %d, want 10", out.ValidDelta)
	}
	if len(out.Events) != 1 || out.Events[0] != EventSpeedAnomaly {
		t.Fatalf("Events = %v, want [%s]", out.Events, EventSpeedAnomaly)
	}
	if s.ValidWatchSec != 110 {
		t.Errorf("ValidWatchSec = %d, want 110", s.ValidWatchSec)
	}
	if s.SuspiciousEventCount != 1 {
		t.Errorf("SuspiciousEventCount = %d, want 1", s.SuspiciousEventCount)
	}
}

func TestApplyHeartbeatFailsAfterSuspiciousLimit(t *testing.T) {
	cfg := progressTestConfig()
	ts := int64(1000)
	s := &types.TrainingSession{
		Status:               types.SessionStatusInLearning,
		LastPosition:         300,
		SuspiciousEventCount: 2,
		LastHeartbeatTs:      &ts,
	}

	out := ApplyHeartbeat(s, HeartbeatReport{
		Position:    100,
		PlayedDelta: 10,
		ClientTs:    1010,
	}, 600, cfg)

	if !out.Failed {
		t.Fatal("expected the third suspicious event to fail the session")
	}
	if s.Status != types.SessionStatusFailed {
		t.Errorf("Status = %s, want %s", s.Status, types.SessionStatusFailed)
	}
	if s.FailureReason != types.FailureTooManySuspiciousEvents {
		t.Errorf("FailureReason = %s, want %s", s.FailureReason, types.FailureTooManySuspiciousEvents)
	}
}

func TestSessionComplete(t *testing.T) {
	cfg := progressTestConfig()
	tests := []struct {
		name     string
		position int
		valid    int
		want     bool
	}{
		{"both conditions met", 600, 600, true},
		{"exactly at thresholds", 598, 570, true},
		{"playhead short of end", 590, 600, false},
		{"not enough valid time", 600, 569, false},
		{"neither", 100, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &types.TrainingSession{
				LastPosition:  tt.position,
				ValidWatchSec: tt.valid,
			}
			if got := SessionComplete(s, 600, 0.95, cfg); got != tt.want {
				t.Errorf("SessionComplete(pos=%d, valid=%d) = %v, want %v", tt.position, tt.valid, got, tt.want)
			}
		})
	}
}

func TestCheckDueUsesAnchorAndWindow(t *testing.T) {
	cfg := progressTestConfig()
	cfg.CheckMinSec = 180
	cfg.CheckMaxSec = 180 // pin the random window for determinism

	started := time.Now().Add(-10 * time.Minute)
	s := &types.TrainingSession{
		Status:    types.SessionStatusInLearning,
		StartedAt: &started,
	}
	if !CheckDue(s, time.Now(), cfg) {
		t.Fatal("expected a check to be due 10 minutes after start")
	}

	justChecked := time.Now().Add(-30 * time.Second)
	s.LastCheckAt = &justChecked
	if CheckDue(s, time.Now(), cfg) {
		t.Fatal("expected no check 30 seconds after the previous one")
	}

	s.Status = types.SessionStatusCompleted
	s.LastCheckAt = nil
	if CheckDue(s, time.Now(), cfg) {
		t.Fatal("terminal sessions never get checks")
	}
}
