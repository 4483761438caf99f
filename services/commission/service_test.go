package commission

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliate-platform/pkg/db/option"
	"affiliate-platform/pkg/kafka"
	"affiliate-platform/pkg/repository"
	"affiliate-platform/pkg/topics"
	"affiliate-platform/services/sagalog"
	"affiliate-platform/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	withTrxFn     func(tx *gorm.DB) repository.Repository[T]
	findFn        func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn     func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn      func(ctx context.Context, resource *T) error
	updateFn      func(ctx context.Context, query *T, values any) error
	batchCreateFn func(ctx context.Context, resources []*T) error
	countFn       func(ctx context.Context, query *T) (int64, error)
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, query *T, values any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, query, values)
	}
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if m.batchCreateFn != nil {
		return m.batchCreateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, query)
	}
	return 0, nil
}

type publisherMock struct {
	publishFn func(ctx context.Context, topic string, key, value []byte) error
}

func (m *publisherMock) Publish(ctx context.Context, topic string, key, value []byte) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, topic, key, value)
	}
	return nil
}

type sagaLogMock struct {
	entries []*sagalog.Entry
}

func (m *sagaLogMock) Append(ctx context.Context, entry *sagalog.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *sagaLogMock) GetBySagaID(ctx context.Context, sagaID string) ([]*sagalog.Entry, error) {
	return m.entries, nil
}

func (m *sagaLogMock) steps() []sagalog.Step {
	steps := make([]sagalog.Step, 0, len(m.entries))
	for _, e := range m.entries {
		steps = append(steps, e.Step)
	}
	return steps
}

func newAssignmentService(t *testing.T) (*Service, *sagaLogMock) {
	t.Helper()

	db := testutil.NewTestDB(t, &Commission{}, &PartnerAssociation{}, &DeadLetter{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	logs := &sagaLogMock{}
	svc := &Service{
		db:        db,
		node:      node,
		publisher: &publisherMock{},
		resolver: &Resolver{
			associations: repository.ProvideStore[PartnerAssociation](db),
		},
		sagaLog:      logs,
		commissions:  repository.ProvideStore[Commission](db),
		associations: repository.ProvideStore[PartnerAssociation](db),
		deadLetters:  repository.ProvideStore[DeadLetter](db),
	}
	return svc, logs
}

func requestMessage(t *testing.T, req topics.CommissionRequest, offset int) *kafka.Message {
	t.Helper()
	value, err := json.Marshal(req)
	require.NoError(t, err)
	return &kafka.Message{
		ID:    fmt.Sprintf("assign-commission-to-partner[0]@%d", offset),
		Topic: topics.CommissionRequests,
		Key:   []byte(req.InteractionID),
		Value: value,
	}
}

func TestProcessRequestAssignsCommission(t *testing.T) {
	svc, logs := newAssignmentService(t)
	ctx := context.Background()

	require.NoError(t, svc.associations.Create(ctx, &PartnerAssociation{
		CampaignID: "campaign-1",
		PartnerID:  "partner-9",
	}))

	req := topics.CommissionRequest{
		Amount:         1.00,
		CampaignID:     "campaign-1",
		CommissionKind: "CPA",
		InteractionID:  "interaction-1",
	}

	err := svc.ProcessRequest(ctx, requestMessage(t, req, 1))
	require.NoError(t, err)

	row, err := svc.commissions.FindOne(ctx, &Commission{InteractionID: "interaction-1"})
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "partner-9", row.PartnerID)
	require.Equal(t, 1.00, row.Amount)
	require.Equal(t, "CPA", row.CommissionKind)
	require.Equal(t, "success", row.Status)

	require.Equal(t, []sagalog.Step{
		sagalog.StepCommissionReceived,
		sagalog.StepPartnerQueried,
		sagalog.StepCommissionSaved,
	}, logs.steps())
}

func TestProcessRequestRedelivery(t *testing.T) {
	svc, logs := newAssignmentService(t)
	ctx := context.Background()

	require.NoError(t, svc.associations.Create(ctx, &PartnerAssociation{
		CampaignID: "campaign-1",
		PartnerID:  "partner-9",
	}))

	req := topics.CommissionRequest{
		Amount:         0.10,
		CampaignID:     "campaign-1",
		CommissionKind: "CPC",
		InteractionID:  "interaction-1",
	}

	require.NoError(t, svc.ProcessRequest(ctx, requestMessage(t, req, 1)))
	stepsAfterFirst := len(logs.entries)

	require.NoError(t, svc.ProcessRequest(ctx, requestMessage(t, req, 1)))

	total, err := svc.commissions.Count(ctx, &Commission{InteractionID: "interaction-1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total, "a redelivered request must not assign a second commission")
	require.Len(t, logs.entries, stepsAfterFirst, "a redelivered request must not append saga steps")
}

func TestProcessRequestNoPartner(t *testing.T) {
	svc, logs := newAssignmentService(t)
	ctx := context.Background()

	var compensationTopic string
	var compensation topics.FailTrackingEvent
	svc.publisher = &publisherMock{
		publishFn: func(ctx context.Context, topic string, key, value []byte) error {
			compensationTopic = topic
			return json.Unmarshal(value, &compensation)
		},
	}

	req := topics.CommissionRequest{
		Amount:         0.01,
		CampaignID:     "orphan-campaign",
		CommissionKind: "CPM",
		InteractionID:  "interaction-5",
	}

	err := svc.ProcessRequest(ctx, requestMessage(t, req, 2))
	require.Error(t, err)
	require.True(t, kafka.IsTerminal(err), "an unresolvable request must be acknowledged, not redelivered")

	require.Equal(t, topics.FailTracking, compensationTopic)
	require.Equal(t, topics.FailTrackingEvent{InteractionID: "interaction-5"}, compensation)

	total, err := svc.commissions.Count(ctx, &Commission{})
	require.NoError(t, err)
	require.Zero(t, total)

	require.Equal(t, []sagalog.Step{sagalog.StepCommissionFailed}, logs.steps())
	require.Equal(t, sagalog.StatusFailed, logs.entries[0].Status)
}

func TestProcessRequestCompensationPublishFailure(t *testing.T) {
	svc, _ := newAssignmentService(t)
	ctx := context.Background()

	svc.publisher = &publisherMock{
		publishFn: func(ctx context.Context, topic string, key, value []byte) error {
			return context.DeadlineExceeded
		},
	}

	req := topics.CommissionRequest{
		CampaignID:    "orphan-campaign",
		InteractionID: "interaction-6",
	}

	err := svc.ProcessRequest(ctx, requestMessage(t, req, 3))
	require.Error(t, err)
	require.False(t, kafka.IsTerminal(err), "the request must redeliver until the compensation is published")
}

func TestProcessRequestMalformed(t *testing.T) {
	svc, _ := newAssignmentService(t)
	ctx := context.Background()

	err := svc.ProcessRequest(ctx, &kafka.Message{
		ID:    "assign-commission-to-partner[0]@9",
		Topic: topics.CommissionRequests,
		Value: []byte("{not json"),
	})
	require.Error(t, err)
	require.True(t, kafka.IsTerminal(err))

	letters, err := svc.deadLetters.Find(ctx, &DeadLetter{})
	require.NoError(t, err)
	require.Len(t, letters, 1)
	require.Equal(t, topics.CommissionRequests, letters[0].Topic)
	require.NotEmpty(t, letters[0].Reason)
}

func TestApplyAssociation(t *testing.T) {
	svc, _ := newAssignmentService(t)
	ctx := context.Background()

	message := func(campaignID, partnerID string, offset int64) *kafka.Message {
		value, err := json.Marshal(topics.PartnerAssociationEvent{CampaignID: campaignID, PartnerID: partnerID})
		require.NoError(t, err)
		return &kafka.Message{
			ID:    fmt.Sprintf("campaign-partner-associations[0]@%d", offset),
			Topic: topics.PartnerAssociations,
			Value: value,
		}
	}

	require.NoError(t, svc.ApplyAssociation(ctx, message("campaign-1", "partner-1", 1)))

	partnerID, err := svc.resolver.FindPartnerIDForCampaign(ctx, "campaign-1")
	require.NoError(t, err)
	require.Equal(t, "partner-1", partnerID)

	// A later event for the same campaign wins.
	require.NoError(t, svc.ApplyAssociation(ctx, message("campaign-1", "partner-2", 2)))

	partnerID, err = svc.resolver.FindPartnerIDForCampaign(ctx, "campaign-1")
	require.NoError(t, err)
	require.Equal(t, "partner-2", partnerID)

	total, err := svc.associations.Count(ctx, &PartnerAssociation{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestApplyAssociationMalformed(t *testing.T) {
	svc, _ := newAssignmentService(t)
	ctx := context.Background()

	err := svc.ApplyAssociation(ctx, &kafka.Message{
		ID:    "campaign-partner-associations[0]@9",
		Topic: topics.PartnerAssociations,
		Value: []byte(`{"campaign_id":"campaign-1"}`),
	})
	require.Error(t, err)
	require.True(t, kafka.IsTerminal(err))

	letters, err := svc.deadLetters.Find(ctx, &DeadLetter{})
	require.NoError(t, err)
	require.Len(t, letters, 1)
}
