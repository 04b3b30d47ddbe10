package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/happyinline/internal/clock"
	"github.com/smallbiznis/happyinline/internal/config"
	obscontext "github.com/smallbiznis/happyinline/internal/observability/context"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/internal/payment/domain/mocks"
	"github.com/smallbiznis/happyinline/internal/payment/reconcile"
	"github.com/smallbiznis/happyinline/internal/payment/refund"
	"github.com/smallbiznis/happyinline/internal/plan"
	"github.com/smallbiznis/happyinline/internal/providers/pdf"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"github.com/smallbiznis/happyinline/internal/subscription/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	repo    subscriptiondomain.Repository
	svc     subscriptiondomain.Service
	gateway *mocks.MockGateway
	clock   *clock.FakeClock
	genID   *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:subscription_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.OwnerSubscription{},
		&subscriptiondomain.PaymentHistory{},
		&subscriptiondomain.SubscriptionEvent{},
	))

	plans := plan.DefaultPlans()
	for i := range plans {
		plans[i].StripePriceID = "price_" + plans[i].ID
	}
	catalog, err := plan.NewCatalog(plans)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	clk := clock.NewFakeClock(start)
	repo := repository.Provide()

	svc := NewService(ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		Cfg:     config.Config{AppName: "Happy Inline"},
		GenID:   node,
		Clock:   clk,
		Repo:    repo,
		Plans:   plan.NewStaticHolder(catalog),
		Gateway: gw,
		Refunds: refund.NewResolver(refund.Params{Gateway: gw, Log: zap.NewNop()}),
		PDF:     pdf.New(),
	})
	return &fixture{db: db, repo: repo, svc: svc, gateway: gw, clock: clk, genID: node}
}

func (f *fixture) owner(t *testing.T, ownerID string) *subscriptiondomain.OwnerSubscription {
	t.Helper()
	got, err := f.repo.FindByOwnerID(context.Background(), f.db, ownerID)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got
}

func (f *fixture) events(t *testing.T, ownerID string) []subscriptiondomain.SubscriptionEvent {
	t.Helper()
	var rows []subscriptiondomain.SubscriptionEvent
	require.NoError(t, f.db.Where("owner_id = ?", ownerID).Order("created_at ASC, id ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) payments(t *testing.T, ownerID string) []subscriptiondomain.PaymentHistory {
	t.Helper()
	var rows []subscriptiondomain.PaymentHistory
	require.NoError(t, f.db.Where("owner_id = ?", ownerID).Order("created_at ASC, id ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) activate(t *testing.T, ownerID, subID string) {
	t.Helper()
	require.NoError(t, f.svc.Activate(context.Background(), subscriptiondomain.ActivateRequest{
		OwnerID:         ownerID,
		Email:           "owner@example.com",
		PlanID:          plan.Basic,
		CustomerID:      "cus_1",
		SubscriptionID:  subID,
		InvoiceID:       "in_1",
		PaymentIntentID: "pi_1",
		AmountPaid:      2499,
		Currency:        "usd",
		StartedAt:       start,
	}))
}

// reconciler applies webhook events against the same store as the service.
func (f *fixture) reconciler() *reconcile.Service {
	return reconcile.NewService(reconcile.Params{
		DB:              f.db,
		Log:             zap.NewNop(),
		GenID:           f.genID,
		Clock:           f.clock,
		Repo:            f.repo,
		SubscriptionSvc: f.svc,
	})
}

func (f *fixture) expectCustomerSetup() {
	f.gateway.EXPECT().CreateCustomer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in paymentdomain.CreateCustomerInput) (*paymentdomain.Customer, error) {
			return &paymentdomain.Customer{ID: "cus_1", Email: in.Email}, nil
		})
	f.gateway.EXPECT().AttachPaymentMethod(gomock.Any(), "pm_card_visa", "cus_1").
		Return(&paymentdomain.PaymentMethod{ID: "pm_card_visa", Brand: "visa", Last4: "4242"}, nil)
	f.gateway.EXPECT().SetDefaultPaymentMethod(gomock.Any(), "cus_1", "pm_card_visa").Return(nil)
}

func checkoutRequest() subscriptiondomain.CheckoutRequest {
	return subscriptiondomain.CheckoutRequest{
		OwnerID:         "owner_1",
		Email:           "owner@example.com",
		PlanName:        "Basic",
		PaymentMethodID: "pm_card_visa",
	}
}

func TestCheckoutActivatesBasicPlan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectCustomerSetup()
	f.gateway.EXPECT().CreateSubscription(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in paymentdomain.CreateSubscriptionInput) (*paymentdomain.Subscription, error) {
			require.Equal(t, "price_basic", in.PriceID)
			require.Equal(t, "owner_1", in.Metadata["userId"])
			require.Equal(t, plan.Basic, in.Metadata["planId"])
			return &paymentdomain.Subscription{
				ID:         "sub_1",
				CustomerID: "cus_1",
				Status:     paymentdomain.SubscriptionActive,
				LatestInvoice: &paymentdomain.Invoice{
					ID:              "in_1",
					AmountPaid:      2499,
					Currency:        "usd",
					PaymentIntentID: "pi_1",
					PaymentIntent:   &paymentdomain.PaymentIntent{ID: "pi_1", Status: paymentdomain.PaymentIntentSucceeded},
				},
			}, nil
		})

	resp, err := f.svc.Checkout(ctx, checkoutRequest())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.False(t, resp.RequiresAction)
	require.Equal(t, "cus_1", resp.CustomerID)
	require.Equal(t, "sub_1", resp.SubscriptionID)
	require.Equal(t, "4242", resp.PaymentMethodLast4)
	require.Equal(t, "visa", resp.PaymentMethodBrand)

	got := f.owner(t, "owner_1")
	require.Equal(t, subscriptiondomain.StatusActive, got.SubscriptionStatus)
	require.Equal(t, plan.Basic, *got.SubscriptionPlan)
	require.Equal(t, int64(2499), got.MonthlyAmount)
	require.Equal(t, 2, got.MaxLicenses)
	require.True(t, start.Equal(*got.SubscriptionStartDate))
	require.True(t, start.AddDate(0, 1, 0).Equal(*got.NextBillingDate))
	require.True(t, start.Add(7*24*time.Hour).Equal(*got.RefundEligibleUntil))
	require.Equal(t, "cus_1", *got.StripeCustomerID)
	require.Equal(t, "sub_1", *got.StripeSubscriptionID)
	require.Equal(t, "4242", *got.PaymentMethodLast4)

	payments := f.payments(t, "owner_1")
	require.Len(t, payments, 1)
	require.Equal(t, subscriptiondomain.PaymentTypeSubscription, payments[0].PaymentType)
	require.Equal(t, "in_1", *payments[0].StripeInvoiceID)

	events := f.events(t, "owner_1")
	require.Len(t, events, 1)
	require.Equal(t, subscriptiondomain.EventCreated, events[0].EventType)
	require.Equal(t, "checkout:sub_1", events[0].StripeEventID)
}

func TestCheckoutRejectsUnknownPlanBeforeProcessorCalls(t *testing.T) {
	f := newFixture(t)
	req := checkoutRequest()
	req.PlanName = "Gold"

	_, err := f.svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, plan.ErrUnknownPlan)
}

func TestCheckoutRequiresOwner(t *testing.T) {
	f := newFixture(t)
	req := checkoutRequest()
	req.OwnerID = ""
	req.ShopID = ""

	_, err := f.svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, subscriptiondomain.ErrInvalidOwner)
}

func TestCheckoutRequiresAction(t *testing.T) {
	f := newFixture(t)
	f.expectCustomerSetup()
	f.gateway.EXPECT().CreateSubscription(gomock.Any(), gomock.Any()).Return(&paymentdomain.Subscription{
		ID:         "sub_1",
		CustomerID: "cus_1",
		Status:     paymentdomain.SubscriptionIncomplete,
		LatestInvoice: &paymentdomain.Invoice{
			ID:              "in_1",
			PaymentIntentID: "pi_1",
			PaymentIntent: &paymentdomain.PaymentIntent{
				ID:           "pi_1",
				Status:       paymentdomain.PaymentIntentRequiresAction,
				ClientSecret: "pi_1_secret_abc",
			},
		},
	}, nil)

	resp, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.NoError(t, err)
	require.True(t, resp.RequiresAction)
	require.Equal(t, "pi_1_secret_abc", resp.ClientSecret)
	require.Equal(t, paymentdomain.SubscriptionIncomplete, resp.Status)

	got := f.owner(t, "owner_1")
	require.Equal(t, subscriptiondomain.StatusPending, got.SubscriptionStatus)
	require.Equal(t, "sub_1", *got.StripeSubscriptionID)
	require.Nil(t, got.RefundEligibleUntil)
	require.Empty(t, f.payments(t, "owner_1"))
}

func TestCheckoutSurfacesDecline(t *testing.T) {
	f := newFixture(t)
	f.gateway.EXPECT().CreateCustomer(gomock.Any(), gomock.Any()).Return(&paymentdomain.Customer{ID: "cus_1"}, nil)
	f.gateway.EXPECT().AttachPaymentMethod(gomock.Any(), "pm_card_visa", "cus_1").Return(nil, &paymentdomain.ProcessorError{
		Type:        "card_error",
		Code:        "card_declined",
		DeclineCode: "insufficient_funds",
		Message:     "Your card has insufficient funds.",
	})

	_, err := f.svc.Checkout(context.Background(), checkoutRequest())
	var procErr *paymentdomain.ProcessorError
	require.True(t, errors.As(err, &procErr))
	require.Equal(t, "insufficient_funds", procErr.ReasonCode())
}

func TestCheckoutSurfacesIncompleteDecline(t *testing.T) {
	f := newFixture(t)
	f.expectCustomerSetup()
	f.gateway.EXPECT().CreateSubscription(gomock.Any(), gomock.Any()).Return(&paymentdomain.Subscription{
		ID:         "sub_1",
		CustomerID: "cus_1",
		Status:     paymentdomain.SubscriptionIncomplete,
		LatestInvoice: &paymentdomain.Invoice{
			ID:              "in_1",
			PaymentIntentID: "pi_1",
			PaymentIntent: &paymentdomain.PaymentIntent{
				ID:     "pi_1",
				Status: paymentdomain.PaymentIntentRequiresPaymentMethod,
				LastPaymentError: &paymentdomain.PaymentError{
					Type:        "card_error",
					Code:        "card_declined",
					DeclineCode: "insufficient_funds",
					Message:     "Your card has insufficient funds.",
				},
			},
		},
	}, nil)

	_, err := f.svc.Checkout(context.Background(), checkoutRequest())
	var procErr *paymentdomain.ProcessorError
	require.True(t, errors.As(err, &procErr))
	require.Equal(t, "insufficient_funds", procErr.ReasonCode())
	require.Equal(t, "Your card has insufficient funds.", procErr.Message)
	require.Equal(t, http.StatusPaymentRequired, procErr.HTTPStatus)
	require.True(t, procErr.IsDecline())

	got := f.owner(t, "owner_1")
	require.Equal(t, subscriptiondomain.StatusPending, got.SubscriptionStatus)
	require.Empty(t, f.payments(t, "owner_1"))
}

func TestCheckoutKeysEachAttempt(t *testing.T) {
	f := newFixture(t)

	var customerKeys, subscriptionKeys []string
	f.gateway.EXPECT().CreateCustomer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in paymentdomain.CreateCustomerInput) (*paymentdomain.Customer, error) {
			customerKeys = append(customerKeys, in.IdempotencyKey)
			return &paymentdomain.Customer{ID: "cus_1", Email: in.Email}, nil
		})
	f.gateway.EXPECT().AttachPaymentMethod(gomock.Any(), "pm_card_visa", "cus_1").
		Return(&paymentdomain.PaymentMethod{ID: "pm_card_visa", Brand: "visa", Last4: "4242"}, nil).Times(2)
	f.gateway.EXPECT().SetDefaultPaymentMethod(gomock.Any(), "cus_1", "pm_card_visa").Return(nil).Times(2)
	f.gateway.EXPECT().CreateSubscription(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in paymentdomain.CreateSubscriptionInput) (*paymentdomain.Subscription, error) {
			subscriptionKeys = append(subscriptionKeys, in.IdempotencyKey)
			require.Equal(t, "cus_1", in.CustomerID)
			if len(subscriptionKeys) == 1 {
				return &paymentdomain.Subscription{
					ID:     "sub_1",
					Status: paymentdomain.SubscriptionIncomplete,
					LatestInvoice: &paymentdomain.Invoice{
						ID:            "in_1",
						PaymentIntent: &paymentdomain.PaymentIntent{ID: "pi_1", Status: paymentdomain.PaymentIntentRequiresPaymentMethod},
					},
				}, nil
			}
			return &paymentdomain.Subscription{
				ID:     "sub_2",
				Status: paymentdomain.SubscriptionActive,
				LatestInvoice: &paymentdomain.Invoice{
					ID:              "in_2",
					AmountPaid:      2499,
					Currency:        "usd",
					PaymentIntentID: "pi_2",
					PaymentIntent:   &paymentdomain.PaymentIntent{ID: "pi_2", Status: paymentdomain.PaymentIntentSucceeded},
				},
			}, nil
		}).Times(2)

	_, err := f.svc.Checkout(obscontext.WithRequestID(context.Background(), "req_1"), checkoutRequest())
	var procErr *paymentdomain.ProcessorError
	require.True(t, errors.As(err, &procErr))
	require.Equal(t, "payment_failed", procErr.ReasonCode())

	f.clock.Advance(time.Minute)
	resp, err := f.svc.Checkout(obscontext.WithRequestID(context.Background(), "req_2"), checkoutRequest())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "cus_1", resp.CustomerID)

	require.Equal(t, []string{"checkout-customer-owner_1-req_1"}, customerKeys)
	require.Equal(t, []string{"checkout-subscription-owner_1-req_1", "checkout-subscription-owner_1-req_2"}, subscriptionKeys)

	got := f.owner(t, "owner_1")
	require.Equal(t, subscriptiondomain.StatusActive, got.SubscriptionStatus)
	require.Equal(t, "sub_2", *got.StripeSubscriptionID)
}

func TestCheckoutWithoutRequestIDStillKeysEachAttempt(t *testing.T) {
	f := newFixture(t)

	var keys []string
	f.gateway.EXPECT().CreateCustomer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in paymentdomain.CreateCustomerInput) (*paymentdomain.Customer, error) {
			keys = append(keys, in.IdempotencyKey)
			return nil, &paymentdomain.ProcessorError{Type: "api_error", Message: "unavailable"}
		}).Times(2)

	_, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.Error(t, err)
	_, err = f.svc.Checkout(context.Background(), checkoutRequest())
	require.Error(t, err)

	require.Len(t, keys, 2)
	require.NotEqual(t, keys[0], keys[1])
}

func TestCheckoutRejectsActiveOwner(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")

	_, err := f.svc.Checkout(context.Background(), checkoutRequest())
	require.ErrorIs(t, err, subscriptiondomain.ErrAlreadySubscribed)
}

func TestActivateIsIdempotentAcrossPaths(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")
	f.clock.Advance(time.Minute)
	f.activate(t, "owner_1", "sub_1")

	require.Len(t, f.payments(t, "owner_1"), 1)
	require.Len(t, f.events(t, "owner_1"), 1)
}

func TestCancelInsideRefundWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")
	f.clock.Set(start.Add(3 * 24 * time.Hour))

	f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", true).Return(&paymentdomain.Subscription{
		ID:            "sub_1",
		CustomerID:    "cus_1",
		LatestInvoice: &paymentdomain.Invoice{ID: "in_1", PaymentIntentID: "pi_1", AmountPaid: 2499, Currency: "usd"},
	}, nil)
	f.gateway.EXPECT().CreateRefund(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in paymentdomain.CreateRefundInput) (*paymentdomain.Refund, error) {
			require.Equal(t, "pi_1", in.PaymentIntentID)
			require.Equal(t, int64(2499), in.Amount)
			return &paymentdomain.Refund{ID: "re_1", Amount: 2499, Currency: "usd", Status: "succeeded"}, nil
		})
	f.gateway.EXPECT().CancelSubscription(gomock.Any(), "sub_1").Return(&paymentdomain.Subscription{ID: "sub_1"}, nil)

	resp, err := f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{OwnerID: "owner_1"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.True(t, resp.Refunded)
	require.Equal(t, "re_1", resp.RefundID)
	require.Equal(t, subscriptiondomain.StatusCancelled, resp.Status)

	got := f.owner(t, "owner_1")
	require.Equal(t, subscriptiondomain.StatusCancelled, got.SubscriptionStatus)
	require.True(t, f.clock.Now().Equal(*got.SubscriptionEndDate))

	payments := f.payments(t, "owner_1")
	require.Len(t, payments, 2)
	require.Equal(t, subscriptiondomain.PaymentRefunded, payments[1].Status)
	require.Equal(t, "re_1", *payments[1].RefundID)
	require.Equal(t, int64(2499), *payments[1].RefundAmount)
}

func TestCancelOutsideRefundWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")
	f.clock.Set(start.Add(10 * 24 * time.Hour))

	f.gateway.EXPECT().CancelAtPeriodEnd(gomock.Any(), "sub_1").Return(&paymentdomain.Subscription{ID: "sub_1", CancelAtPeriodEnd: true}, nil)

	resp, err := f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{OwnerID: "owner_1"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.False(t, resp.Refunded)
	require.Empty(t, resp.RefundID)

	got := f.owner(t, "owner_1")
	require.Equal(t, subscriptiondomain.StatusCancelled, got.SubscriptionStatus)
	require.True(t, got.NextBillingDate.Equal(*got.SubscriptionEndDate))
	require.True(t, start.AddDate(0, 1, 0).Equal(resp.EffectiveAt))
	require.Len(t, f.payments(t, "owner_1"), 1)

	_, err = f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{OwnerID: "owner_1"})
	require.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotActive)
}

func TestRefundMarksOwnerRefunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")

	f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", true).Return(&paymentdomain.Subscription{
		ID:            "sub_1",
		LatestInvoice: &paymentdomain.Invoice{ID: "in_1", ChargeID: "ch_1", AmountPaid: 2499, Currency: "usd"},
	}, nil)
	f.gateway.EXPECT().CreateRefund(gomock.Any(), gomock.Any()).Return(&paymentdomain.Refund{ID: "re_1", Amount: 1000, Currency: "usd", Status: "succeeded"}, nil)
	f.gateway.EXPECT().CancelSubscription(gomock.Any(), "sub_1").Return(&paymentdomain.Subscription{ID: "sub_1"}, nil)

	amount := int64(1000)
	resp, err := f.svc.Refund(ctx, subscriptiondomain.RefundRequest{OwnerID: "owner_1", Amount: &amount, Reason: "duplicate"})
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.RefundResponse{Success: true, RefundID: "re_1", RefundAmount: 1000, Status: "succeeded"}, resp)
	require.Equal(t, subscriptiondomain.StatusRefunded, f.owner(t, "owner_1").SubscriptionStatus)

	events := f.events(t, "owner_1")
	require.Equal(t, subscriptiondomain.EventRefunded, events[len(events)-1].EventType)
}

func TestCancelAtPeriodEndSurvivesUpdatedWebhook(t *testing.T) {
	periodEnd := start.AddDate(0, 1, 0)
	updated := paymentdomain.SubscriptionUpdated{
		EventMeta:         paymentdomain.EventMeta{ID: "evt_updated", Type: "customer.subscription.updated"},
		SubscriptionID:    "sub_1",
		CustomerID:        "cus_1",
		Status:            paymentdomain.SubscriptionActive,
		CurrentPeriodEnd:  periodEnd,
		CancelAtPeriodEnd: true,
	}

	assertCancelled := func(t *testing.T, f *fixture) {
		got := f.owner(t, "owner_1")
		require.Equal(t, subscriptiondomain.StatusCancelled, got.SubscriptionStatus)
		require.NotNil(t, got.SubscriptionEndDate)
		require.True(t, periodEnd.Equal(*got.SubscriptionEndDate))
		require.True(t, periodEnd.Equal(*got.NextBillingDate))
	}

	t.Run("webhook after cancel", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.activate(t, "owner_1", "sub_1")
		f.clock.Set(start.Add(10 * 24 * time.Hour))
		f.gateway.EXPECT().CancelAtPeriodEnd(gomock.Any(), "sub_1").Return(&paymentdomain.Subscription{ID: "sub_1", CancelAtPeriodEnd: true}, nil)

		_, err := f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{OwnerID: "owner_1"})
		require.NoError(t, err)
		require.NoError(t, f.reconciler().Handle(ctx, updated))
		assertCancelled(t, f)
	})

	t.Run("webhook during cancel", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.activate(t, "owner_1", "sub_1")
		f.clock.Set(start.Add(10 * 24 * time.Hour))
		rec := f.reconciler()
		f.gateway.EXPECT().CancelAtPeriodEnd(gomock.Any(), "sub_1").DoAndReturn(
			func(ctx context.Context, _ string) (*paymentdomain.Subscription, error) {
				require.NoError(t, rec.Handle(ctx, updated))
				return &paymentdomain.Subscription{ID: "sub_1", CancelAtPeriodEnd: true}, nil
			})

		_, err := f.svc.Cancel(ctx, subscriptiondomain.CancelRequest{OwnerID: "owner_1"})
		require.NoError(t, err)
		assertCancelled(t, f)
	})
}

func TestRefundAndDeletedWebhookConverge(t *testing.T) {
	deleted := paymentdomain.SubscriptionDeleted{
		EventMeta:      paymentdomain.EventMeta{ID: "evt_deleted", Type: "customer.subscription.deleted"},
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	}
	latest := &paymentdomain.Subscription{
		ID:            "sub_1",
		LatestInvoice: &paymentdomain.Invoice{ID: "in_1", PaymentIntentID: "pi_1", AmountPaid: 2499, Currency: "usd"},
	}
	refunded := &paymentdomain.Refund{ID: "re_1", Amount: 2499, Currency: "usd", Status: "succeeded"}

	assertRefunded := func(t *testing.T, f *fixture) {
		got := f.owner(t, "owner_1")
		require.Equal(t, subscriptiondomain.StatusRefunded, got.SubscriptionStatus)
		require.NotNil(t, got.SubscriptionEndDate)
		require.True(t, f.clock.Now().Equal(*got.SubscriptionEndDate))
	}

	t.Run("refund then webhook", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.activate(t, "owner_1", "sub_1")
		f.clock.Set(start.Add(2 * 24 * time.Hour))
		f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", true).Return(latest, nil)
		f.gateway.EXPECT().CreateRefund(gomock.Any(), gomock.Any()).Return(refunded, nil)
		f.gateway.EXPECT().CancelSubscription(gomock.Any(), "sub_1").Return(&paymentdomain.Subscription{ID: "sub_1"}, nil)

		_, err := f.svc.Refund(ctx, subscriptiondomain.RefundRequest{OwnerID: "owner_1"})
		require.NoError(t, err)
		require.NoError(t, f.reconciler().Handle(ctx, deleted))
		assertRefunded(t, f)
	})

	t.Run("webhook then refund", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.activate(t, "owner_1", "sub_1")
		f.clock.Set(start.Add(2 * 24 * time.Hour))
		rec := f.reconciler()
		f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", true).Return(latest, nil)
		f.gateway.EXPECT().CreateRefund(gomock.Any(), gomock.Any()).Return(refunded, nil)
		f.gateway.EXPECT().CancelSubscription(gomock.Any(), "sub_1").DoAndReturn(
			func(ctx context.Context, _ string) (*paymentdomain.Subscription, error) {
				require.NoError(t, rec.Handle(ctx, deleted))
				require.Equal(t, subscriptiondomain.StatusCancelled, f.owner(t, "owner_1").SubscriptionStatus)
				return &paymentdomain.Subscription{ID: "sub_1"}, nil
			})

		_, err := f.svc.Refund(ctx, subscriptiondomain.RefundRequest{OwnerID: "owner_1"})
		require.NoError(t, err)
		assertRefunded(t, f)
	})
}

func TestRefundWithoutPaymentIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")
	f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", true).Return(&paymentdomain.Subscription{ID: "sub_1"}, nil)

	_, err := f.svc.Refund(context.Background(), subscriptiondomain.RefundRequest{SubscriptionID: "sub_1"})
	require.ErrorIs(t, err, paymentdomain.ErrNoRefundablePayment)
	require.Equal(t, subscriptiondomain.StatusActive, f.owner(t, "owner_1").SubscriptionStatus)
}

func TestRefundUnknownOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Refund(context.Background(), subscriptiondomain.RefundRequest{OwnerID: "owner_missing"})
	require.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)

	_, err = f.svc.Refund(context.Background(), subscriptiondomain.RefundRequest{})
	require.ErrorIs(t, err, subscriptiondomain.ErrInvalidOwner)
}

func TestResolveOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.Activate(ctx, subscriptiondomain.ActivateRequest{
		OwnerID:        "owner_1",
		ShopID:         "shop_1",
		PlanID:         plan.Basic,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		InvoiceID:      "in_1",
		AmountPaid:     2499,
		Currency:       "usd",
		StartedAt:      start,
	}))

	tests := []struct {
		name string
		ref  subscriptiondomain.OwnerRef
		want string
	}{
		{name: "subscription", ref: subscriptiondomain.OwnerRef{SubscriptionID: "sub_1"}, want: "owner_1"},
		{name: "subscription wins over owner", ref: subscriptiondomain.OwnerRef{OwnerID: "owner_x", SubscriptionID: "sub_1"}, want: "owner_1"},
		{name: "owner", ref: subscriptiondomain.OwnerRef{OwnerID: " owner_2 "}, want: "owner_2"},
		{name: "known shop", ref: subscriptiondomain.OwnerRef{ShopID: "shop_1"}, want: "owner_1"},
		{name: "unknown shop", ref: subscriptiondomain.OwnerRef{ShopID: "shop_9"}, want: "shop_9"},
		{name: "unknown subscription", ref: subscriptiondomain.OwnerRef{SubscriptionID: "sub_9"}, want: "sub_9"},
		{name: "empty", ref: subscriptiondomain.OwnerRef{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.ResolveOwner(ctx, tt.ref)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestChangePlanUpgrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")
	f.clock.Set(start.Add(2 * 24 * time.Hour))

	f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", false).Return(&paymentdomain.Subscription{
		ID:         "sub_1",
		CustomerID: "cus_1",
		ItemID:     "si_1",
		PriceID:    "price_basic",
	}, nil)
	f.gateway.EXPECT().UpdateSubscriptionPrice(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in paymentdomain.UpdatePriceInput) (*paymentdomain.Subscription, error) {
			require.Equal(t, "si_1", in.ItemID)
			require.Equal(t, "price_starter", in.PriceID)
			require.Equal(t, plan.Basic, in.Metadata["previous_plan"])
			require.Equal(t, plan.Starter, in.Metadata["new_plan"])
			require.NotEmpty(t, in.Metadata["changed_at"])
			return &paymentdomain.Subscription{ID: "sub_1", PriceID: in.PriceID}, nil
		})
	f.gateway.EXPECT().UpcomingInvoice(gomock.Any(), "cus_1", "sub_1").Return(&paymentdomain.Invoice{AmountDue: 2300}, nil)

	resp, err := f.svc.ChangePlan(ctx, subscriptiondomain.UpgradeRequest{
		SubscriptionID: "sub_1",
		NewPriceID:     "price_starter",
		OwnerID:        "owner_1",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, int64(2300), resp.ProrationAmount)
	require.Equal(t, "Starter", resp.NewPlanName)

	got := f.owner(t, "owner_1")
	require.Equal(t, plan.Starter, *got.SubscriptionPlan)
	require.Equal(t, int64(4999), got.MonthlyAmount)
	require.Equal(t, 5, got.MaxLicenses)
	require.True(t, start.Add(7*24*time.Hour).Equal(*got.RefundEligibleUntil))

	events := f.events(t, "owner_1")
	require.Equal(t, subscriptiondomain.EventUpgraded, events[len(events)-1].EventType)
}

func TestChangePlanProrationPreviewIsOptional(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")

	f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", false).Return(&paymentdomain.Subscription{ID: "sub_1", CustomerID: "cus_1", ItemID: "si_1"}, nil)
	f.gateway.EXPECT().UpdateSubscriptionPrice(gomock.Any(), gomock.Any()).Return(&paymentdomain.Subscription{ID: "sub_1"}, nil)
	f.gateway.EXPECT().UpcomingInvoice(gomock.Any(), "cus_1", "sub_1").Return(nil, errors.New("timeout"))

	resp, err := f.svc.ChangePlan(context.Background(), subscriptiondomain.UpgradeRequest{SubscriptionID: "sub_1", NewPlanName: "Enterprise"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Zero(t, resp.ProrationAmount)
	require.Equal(t, plan.Enterprise, *f.owner(t, "owner_1").SubscriptionPlan)
}

func TestChangePlanLogicalFailures(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")

	resp, err := f.svc.ChangePlan(context.Background(), subscriptiondomain.UpgradeRequest{SubscriptionID: "sub_1", NewPlanName: "Basic"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "same_plan", resp.Code)

	resp, err = f.svc.ChangePlan(context.Background(), subscriptiondomain.UpgradeRequest{SubscriptionID: "sub_missing", NewPlanName: "Starter"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "subscription_not_found", resp.Code)

	resp, err = f.svc.ChangePlan(context.Background(), subscriptiondomain.UpgradeRequest{SubscriptionID: "sub_1", NewPlanName: "Gold"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "invalid_plan", resp.Code)

	f.gateway.EXPECT().GetSubscription(gomock.Any(), "sub_1", false).Return(nil, &paymentdomain.ProcessorError{
		Type:    "invalid_request_error",
		Code:    "resource_missing",
		Message: "No such subscription",
	})
	resp, err = f.svc.ChangePlan(context.Background(), subscriptiondomain.UpgradeRequest{SubscriptionID: "sub_1", NewPlanName: "Starter"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "resource_missing", resp.Code)
}

func TestListPaymentsPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		invoiceID := fmt.Sprintf("in_%d", i)
		_, err := f.repo.InsertPayment(ctx, f.db, &subscriptiondomain.PaymentHistory{
			ID:              node.Generate(),
			OwnerID:         "owner_1",
			Amount:          2499,
			Currency:        "usd",
			Status:          subscriptiondomain.PaymentSucceeded,
			PaymentType:     subscriptiondomain.PaymentTypeSubscriptionRenewal,
			StripeInvoiceID: &invoiceID,
			CreatedAt:       start.AddDate(0, i, 0),
		})
		require.NoError(t, err)
	}

	page, err := f.svc.ListPayments(ctx, subscriptiondomain.ListPaymentsRequest{OwnerID: "owner_1", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Payments, 2)
	require.True(t, page.HasMore)
	require.Equal(t, "in_4", *page.Payments[0].StripeInvoiceID)

	var seen []string
	token := ""
	for {
		page, err := f.svc.ListPayments(ctx, subscriptiondomain.ListPaymentsRequest{OwnerID: "owner_1", PageSize: 2, PageToken: token})
		require.NoError(t, err)
		for _, p := range page.Payments {
			seen = append(seen, *p.StripeInvoiceID)
		}
		if !page.HasMore {
			break
		}
		token = page.NextPageToken
	}
	require.Equal(t, []string{"in_4", "in_3", "in_2", "in_1", "in_0"}, seen)

	_, err = f.svc.ListPayments(ctx, subscriptiondomain.ListPaymentsRequest{OwnerID: "owner_1", PageToken: "%%%"})
	require.ErrorIs(t, err, subscriptiondomain.ErrInvalidPageToken)
}

func TestReceiptRendersPDF(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activate(t, "owner_1", "sub_1")
	payments := f.payments(t, "owner_1")
	require.Len(t, payments, 1)

	doc, err := f.svc.Receipt(ctx, "owner_1", payments[0].ID.String())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(doc, []byte("%PDF")))

	_, err = f.svc.Receipt(ctx, "owner_2", payments[0].ID.String())
	require.ErrorIs(t, err, subscriptiondomain.ErrPaymentNotFound)

	_, err = f.svc.Receipt(ctx, "owner_1", "abc")
	require.ErrorIs(t, err, subscriptiondomain.ErrInvalidPaymentID)
}

func TestGetUnknownOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "owner_missing")
	require.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)
}
