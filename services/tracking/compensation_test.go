package tracking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"affiliate-platform/pkg/kafka"
	"affiliate-platform/pkg/repository"
	"affiliate-platform/services/sagalog"
	"affiliate-platform/services/testutil"
)

func newCompensationService(t *testing.T) (*Service, *sagaLogMock) {
	t.Helper()

	db := testutil.NewTestDB(t, &Interaction{}, &ProcessedMessage{})
	logs := &sagaLogMock{}
	svc := &Service{
		db:           db,
		node:         newTestNode(t),
		sagaLog:      logs,
		publisher:    &publisherMock{},
		interactions: repository.ProvideStore[Interaction](db),
		processed:    repository.ProvideStore[ProcessedMessage](db),
	}
	return svc, logs
}

func TestCompensateInteraction(t *testing.T) {
	svc, logs := newCompensationService(t)
	ctx := context.Background()

	require.NoError(t, svc.interactions.Create(ctx, &Interaction{
		ID:         "interaction-1",
		CampaignID: "campaign-1",
		Kind:       KindClick,
		Status:     StatusSuccess,
	}))

	err := svc.CompensateInteraction(ctx, "fail-tracking-events[0]@7", "interaction-1")
	require.NoError(t, err)

	row, err := svc.interactions.FindOne(ctx, &Interaction{ID: "interaction-1"})
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, StatusFailed, row.Status)

	marker, err := svc.processed.FindOne(ctx, &ProcessedMessage{MessageID: "fail-tracking-events[0]@7"})
	require.NoError(t, err)
	require.NotNil(t, marker)
	require.False(t, marker.ProcessedAt.IsZero())

	require.Equal(t, []sagalog.Step{
		sagalog.StepCommissionFailed,
		sagalog.StepCompensationCompleted,
	}, logs.steps())
	require.Equal(t, sagalog.StatusSuccess, logs.entries[1].Status)
}

func TestCompensateInteractionRedelivery(t *testing.T) {
	svc, logs := newCompensationService(t)
	ctx := context.Background()

	require.NoError(t, svc.interactions.Create(ctx, &Interaction{
		ID:         "interaction-1",
		CampaignID: "campaign-1",
		Kind:       KindClick,
		Status:     StatusSuccess,
	}))

	require.NoError(t, svc.CompensateInteraction(ctx, "fail-tracking-events[0]@7", "interaction-1"))
	stepsAfterFirst := len(logs.entries)

	// Simulate an out-of-band repair so a second application would be visible.
	require.NoError(t, svc.interactions.Update(ctx,
		&Interaction{ID: "interaction-1"}, map[string]any{"status": StatusSuccess}))

	require.NoError(t, svc.CompensateInteraction(ctx, "fail-tracking-events[0]@7", "interaction-1"))

	row, err := svc.interactions.FindOne(ctx, &Interaction{ID: "interaction-1"})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, row.Status, "a redelivered compensation must not reapply the status change")
	require.Len(t, logs.entries, stepsAfterFirst, "a redelivered compensation must not append saga steps")
}

func TestCompensateInteractionMissingRow(t *testing.T) {
	svc, _ := newCompensationService(t)
	ctx := context.Background()

	err := svc.CompensateInteraction(ctx, "fail-tracking-events[0]@9", "missing")
	require.NoError(t, err)

	marker, err := svc.processed.FindOne(ctx, &ProcessedMessage{MessageID: "fail-tracking-events[0]@9"})
	require.NoError(t, err)
	require.NotNil(t, marker, "the marker is written even when no interaction matched")
}

func TestHandleFailTrackingMalformed(t *testing.T) {
	svc, _ := newCompensationService(t)

	err := svc.HandleFailTracking(context.Background(), &kafka.Message{
		ID:    "fail-tracking-events[0]@1",
		Value: []byte("{not json"),
	})
	require.Error(t, err)
	require.True(t, kafka.IsTerminal(err), "an undecodable payload can never succeed on redelivery")

	err = svc.HandleFailTracking(context.Background(), &kafka.Message{
		ID:    "fail-tracking-events[0]@2",
		Value: []byte(`{}`),
	})
	require.Error(t, err)
	require.True(t, kafka.IsTerminal(err))
}

func TestHandleFailTrackingCompensates(t *testing.T) {
	svc, _ := newCompensationService(t)
	ctx := context.Background()

	require.NoError(t, svc.interactions.Create(ctx, &Interaction{
		ID:         "interaction-2",
		CampaignID: "campaign-1",
		Kind:       KindImpression,
		Status:     StatusSuccess,
	}))

	err := svc.HandleFailTracking(ctx, &kafka.Message{
		ID:    "fail-tracking-events[0]@3",
		Value: []byte(`{"interaction_id":"interaction-2"}`),
	})
	require.NoError(t, err)

	row, err := svc.interactions.FindOne(ctx, &Interaction{ID: "interaction-2"})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, row.Status)
}
