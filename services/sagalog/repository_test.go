package sagalog

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"affiliate-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestRepository(t *testing.T) Repository {
	t.Helper()

	db := testutil.NewTestDB(t, &Entry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewRepository(RepositoryParams{DB: db, Node: node})
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	repo := newTestRepository(t)

	entry := &Entry{SagaID: "saga-1", Step: StepStarted, Status: StatusPending}
	require.NoError(t, repo.Append(context.Background(), entry))

	require.NotEmpty(t, entry.ID)
	require.False(t, entry.Timestamp.IsZero())
}

func TestGetBySagaIDOrdered(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	steps := []struct {
		step   Step
		status Status
		at     time.Time
	}{
		{StepStarted, StatusPending, base},
		{StepTrackingSaved, StatusSuccess, base.Add(time.Second)},
		{StepCommissionPublished, StatusSuccess, base.Add(2 * time.Second)},
		{StepCommissionReceived, StatusSuccess, base.Add(3 * time.Second)},
	}
	for _, s := range steps {
		require.NoError(t, repo.Append(ctx, &Entry{
			SagaID:    "saga-1",
			Step:      s.step,
			Status:    s.status,
			Timestamp: s.at,
		}))
	}
	// A different saga must not leak into the trail.
	require.NoError(t, repo.Append(ctx, &Entry{
		SagaID: "saga-2", Step: StepStarted, Status: StatusPending,
	}))

	trail, err := repo.GetBySagaID(ctx, "saga-1")
	require.NoError(t, err)
	require.Len(t, trail, 4)
	for i, s := range steps {
		require.Equal(t, s.step, trail[i].Step)
	}
}

func TestAppendAccumulates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// The same step may legitimately appear more than once across attempts;
	// each append is a new row, nothing is overwritten.
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(ctx, &Entry{
			SagaID: "saga-1", Step: StepCommissionFailed, Status: StatusFailed,
		}))
	}

	trail, err := repo.GetBySagaID(ctx, "saga-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
}
