package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/happyinline/internal/clock"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/internal/payment/domain/mocks"
	"github.com/smallbiznis/happyinline/internal/payment/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	verifier *mocks.MockEventVerifier
	handler  *mocks.MockEventHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:webhook_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&paymentdomain.EventRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockEventVerifier(ctrl)
	handler := mocks.NewMockEventHandler(ctrl)

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Verifier: verifier,
		Handler:  handler,
	})
	return &fixture{db: db, svc: svc, verifier: verifier, handler: handler}
}

func (f *fixture) stored(t *testing.T, eventID string) *paymentdomain.EventRecord {
	t.Helper()
	rec, err := repository.Provide().FindEvent(context.Background(), f.db, paymentdomain.ProviderStripe, eventID)
	require.NoError(t, err)
	return rec
}

func deletedEvent(id string) paymentdomain.SubscriptionDeleted {
	return paymentdomain.SubscriptionDeleted{
		EventMeta:      paymentdomain.EventMeta{ID: id, Type: paymentdomain.EventSubscriptionDeleted},
		SubscriptionID: "sub_1",
	}
}

var payload = []byte(`{"id":"evt_1","type":"customer.subscription.deleted"}`)

func TestIngestRejectsBadSignatureBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	f.verifier.EXPECT().VerifyAndParse(payload, "t=1,v1=bad").Return(nil, paymentdomain.ErrInvalidSignature)

	_, err := f.svc.IngestWebhook(context.Background(), payload, "t=1,v1=bad")
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
	require.True(t, IsSignatureError(err))

	var count int64
	require.NoError(t, f.db.Model(&paymentdomain.EventRecord{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestIngestAcknowledgesUnhandledTypes(t *testing.T) {
	f := newFixture(t)
	f.verifier.EXPECT().VerifyAndParse(payload, "sig").Return(paymentdomain.Unhandled{
		EventMeta: paymentdomain.EventMeta{ID: "evt_x", Type: "customer.created"},
	}, nil)

	res, err := f.svc.IngestWebhook(context.Background(), payload, "sig")
	require.NoError(t, err)
	require.False(t, res.Handled)
	require.False(t, res.Duplicate)
	require.Equal(t, "customer.created", res.EventType)
	require.Nil(t, f.stored(t, "evt_x"))
}

func TestIngestDispatchesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := deletedEvent("evt_1")

	f.verifier.EXPECT().VerifyAndParse(payload, "sig").Return(event, nil).Times(2)
	f.handler.EXPECT().Handle(gomock.Any(), event).Return(nil).Times(1)

	res, err := f.svc.IngestWebhook(ctx, payload, "sig")
	require.NoError(t, err)
	require.True(t, res.Handled)
	require.Equal(t, "evt_1", res.EventID)

	rec := f.stored(t, "evt_1")
	require.NotNil(t, rec)
	require.NotNil(t, rec.ProcessedAt)
	require.JSONEq(t, string(payload), string(rec.Payload))

	res, err = f.svc.IngestWebhook(ctx, payload, "sig")
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.False(t, res.Handled)
}

func TestIngestLeavesFailedDeliveryForRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := deletedEvent("evt_2")
	boom := errors.New("db unavailable")

	f.verifier.EXPECT().VerifyAndParse(payload, "sig").Return(event, nil).Times(2)
	gomock.InOrder(
		f.handler.EXPECT().Handle(gomock.Any(), event).Return(boom),
		f.handler.EXPECT().Handle(gomock.Any(), event).Return(nil),
	)

	_, err := f.svc.IngestWebhook(ctx, payload, "sig")
	require.ErrorIs(t, err, boom)
	require.False(t, IsSignatureError(err))

	rec := f.stored(t, "evt_2")
	require.NotNil(t, rec)
	require.Nil(t, rec.ProcessedAt)

	res, err := f.svc.IngestWebhook(ctx, payload, "sig")
	require.NoError(t, err)
	require.True(t, res.Handled)
	require.NotNil(t, f.stored(t, "evt_2").ProcessedAt)
}
