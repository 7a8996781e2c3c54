package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/testutil"
	"github.com/sitepass/sitepass-backend/internal/types"
)

func TestListPendingTrainingFiltersByStatus(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	repo := NewDailyTicketWorkerRepo(db, log)
	ctx := context.Background()

	dailyTicketID := uuid.New()
	siteID := uuid.New()
	mk := func(trainingStatus, status string) *types.DailyTicketWorker {
		row := &types.DailyTicketWorker{
			ID:              uuid.New(),
			DailyTicketID:   dailyTicketID,
			WorkerID:        uuid.New(),
			SiteID:          siteID,
			TotalVideoCount: 1,
			TrainingStatus:  trainingStatus,
			Status:          status,
		}
		if err := repo.CreateIgnoreConflicts(ctx, nil, []*types.DailyTicketWorker{row}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		return row
	}

	notStarted := mk(types.TrainingStatusNotStarted, "ACTIVE")
	inLearning := mk(types.TrainingStatusInLearning, "ACTIVE")
	mk(types.TrainingStatusCompleted, "ACTIVE")
	mk(types.TrainingStatusFailed, "ACTIVE")
	mk(types.TrainingStatusNotStarted, "REMOVED")

	// The morning reminder only nudges workers who never started.
	rows, err := repo.ListPendingTraining(ctx, nil, dailyTicketID,
		[]string{types.TrainingStatusNotStarted})
	if err != nil {
		t.Fatalf("ListPendingTraining: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != notStarted.ID {
		t.Fatalf("reminder set = %d rows, want only the NOT_STARTED worker", len(rows))
	}

	// The deadline sweep also picks up workers mid-video.
	rows, err = repo.ListPendingTraining(ctx, nil, dailyTicketID,
		[]string{types.TrainingStatusNotStarted, types.TrainingStatusInLearning})
	if err != nil {
		t.Fatalf("ListPendingTraining: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("deadline set = %d rows, want 2", len(rows))
	}
	got := map[uuid.UUID]bool{}
	for _, r := range rows {
		got[r.ID] = true
	}
	if !got[notStarted.ID] || !got[inLearning.ID] {
		t.Error("deadline set missing an incomplete worker")
	}

	// An empty filter means every incomplete worker.
	rows, err = repo.ListPendingTraining(ctx, nil, dailyTicketID, nil)
	if err != nil {
		t.Fatalf("ListPendingTraining: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("default set = %d rows, want 2", len(rows))
	}
}
