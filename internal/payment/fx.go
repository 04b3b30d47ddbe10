package payment

import (
	"github.com/smallbiznis/happyinline/internal/payment/adapters/stripe"
	"github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/internal/payment/reconcile"
	"github.com/smallbiznis/happyinline/internal/payment/refund"
	"github.com/smallbiznis/happyinline/internal/payment/repository"
	"github.com/smallbiznis/happyinline/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(stripe.NewGateway),
	fx.Provide(stripe.NewEventVerifier),
	fx.Provide(refund.NewResolver),
	fx.Provide(reconcile.NewService),
	fx.Provide(func(s *reconcile.Service) domain.EventHandler { return s }),
	fx.Provide(webhook.NewService),
)
