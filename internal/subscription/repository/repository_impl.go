package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const profileColumns = `id, subscription_plan, subscription_status, subscription_start_date,
	subscription_end_date, next_billing_date, refund_eligible_until, monthly_amount, currency,
	max_licenses, stripe_customer_id, stripe_subscription_id, payment_method_last4,
	payment_method_brand, shop_id, email, created_at, updated_at`

const paymentColumns = `id, owner_id, amount, currency, status, payment_type, plan_name,
	stripe_invoice_id, stripe_payment_intent_id, description, receipt_url, refund_id,
	refund_amount, created_at`

func (r *repo) FindByOwnerID(ctx context.Context, db *gorm.DB, ownerID string) (*subscriptiondomain.OwnerSubscription, error) {
	return r.findProfile(ctx, db, "id = ?", ownerID)
}

func (r *repo) FindByShopID(ctx context.Context, db *gorm.DB, shopID string) (*subscriptiondomain.OwnerSubscription, error) {
	return r.findProfile(ctx, db, "shop_id = ?", shopID)
}

func (r *repo) FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*subscriptiondomain.OwnerSubscription, error) {
	return r.findProfile(ctx, db, "stripe_subscription_id = ?", subscriptionID)
}

func (r *repo) findProfile(ctx context.Context, db *gorm.DB, where string, arg any) (*subscriptiondomain.OwnerSubscription, error) {
	var item subscriptiondomain.OwnerSubscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+`
		 FROM profiles
		 WHERE `+where+`
		 LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

// UpsertActivation writes the activation fields. A repeated activation for the same
// processor subscription keeps the original start date and refund window, and
// linkage or card fields are only overwritten by non-null values.
func (r *repo) UpsertActivation(ctx context.Context, db *gorm.DB, a subscriptiondomain.Activation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO profiles (
			id, subscription_plan, subscription_status, subscription_start_date,
			subscription_end_date, next_billing_date, refund_eligible_until, monthly_amount,
			currency, max_licenses, stripe_customer_id, stripe_subscription_id,
			payment_method_last4, payment_method_brand, shop_id, email, created_at, updated_at
		) VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			subscription_plan = excluded.subscription_plan,
			subscription_status = excluded.subscription_status,
			subscription_start_date = CASE
				WHEN profiles.stripe_subscription_id = excluded.stripe_subscription_id
					AND profiles.subscription_start_date IS NOT NULL
					AND profiles.refund_eligible_until IS NOT NULL
				THEN profiles.subscription_start_date
				ELSE excluded.subscription_start_date END,
			refund_eligible_until = CASE
				WHEN profiles.stripe_subscription_id = excluded.stripe_subscription_id
					AND profiles.refund_eligible_until IS NOT NULL
				THEN profiles.refund_eligible_until
				ELSE excluded.refund_eligible_until END,
			next_billing_date = CASE
				WHEN profiles.stripe_subscription_id = excluded.stripe_subscription_id
					AND profiles.next_billing_date IS NOT NULL
					AND profiles.next_billing_date > excluded.next_billing_date
				THEN profiles.next_billing_date
				ELSE excluded.next_billing_date END,
			subscription_end_date = NULL,
			monthly_amount = excluded.monthly_amount,
			currency = excluded.currency,
			max_licenses = excluded.max_licenses,
			stripe_customer_id = COALESCE(excluded.stripe_customer_id, profiles.stripe_customer_id),
			stripe_subscription_id = COALESCE(excluded.stripe_subscription_id, profiles.stripe_subscription_id),
			payment_method_last4 = COALESCE(excluded.payment_method_last4, profiles.payment_method_last4),
			payment_method_brand = COALESCE(excluded.payment_method_brand, profiles.payment_method_brand),
			shop_id = COALESCE(excluded.shop_id, profiles.shop_id),
			email = COALESCE(excluded.email, profiles.email),
			updated_at = excluded.updated_at`,
		a.OwnerID,
		a.Plan,
		a.Status,
		a.StartDate,
		a.NextBillingDate,
		a.RefundEligibleUntil,
		a.MonthlyAmount,
		a.Currency,
		a.MaxLicenses,
		nullable(a.StripeCustomerID),
		nullable(a.StripeSubscriptionID),
		a.PaymentMethodLast4,
		a.PaymentMethodBrand,
		a.ShopID,
		a.Email,
		a.UpdatedAt,
		a.UpdatedAt,
	).Error
}

// MarkPending links an owner to a subscription that still awaits customer action.
// An owner that is already active keeps its status.
func (r *repo) MarkPending(ctx context.Context, db *gorm.DB, a subscriptiondomain.Activation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO profiles (
			id, subscription_plan, subscription_status, monthly_amount, currency, max_licenses,
			stripe_customer_id, stripe_subscription_id, shop_id, email, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			subscription_status = CASE
				WHEN profiles.subscription_status = 'active' THEN profiles.subscription_status
				ELSE excluded.subscription_status END,
			stripe_customer_id = COALESCE(excluded.stripe_customer_id, profiles.stripe_customer_id),
			stripe_subscription_id = COALESCE(excluded.stripe_subscription_id, profiles.stripe_subscription_id),
			shop_id = COALESCE(excluded.shop_id, profiles.shop_id),
			email = COALESCE(excluded.email, profiles.email),
			updated_at = excluded.updated_at`,
		a.OwnerID,
		a.Plan,
		subscriptiondomain.StatusPending,
		a.MonthlyAmount,
		a.Currency,
		a.MaxLicenses,
		nullable(a.StripeCustomerID),
		nullable(a.StripeSubscriptionID),
		a.ShopID,
		a.Email,
		a.UpdatedAt,
		a.UpdatedAt,
	).Error
}

func (r *repo) UpdateBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string, update subscriptiondomain.StatusUpdate) (bool, error) {
	return r.updateStatus(ctx, db, "stripe_subscription_id = ?", subscriptionID, update)
}

func (r *repo) UpdateByOwnerID(ctx context.Context, db *gorm.DB, ownerID string, update subscriptiondomain.StatusUpdate) (bool, error) {
	return r.updateStatus(ctx, db, "id = ?", ownerID, update)
}

func (r *repo) updateStatus(ctx context.Context, db *gorm.DB, where string, key string, update subscriptiondomain.StatusUpdate) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{update.UpdatedAt}
	keep := len(update.KeepStatuses) > 0
	if update.Status != nil {
		if keep {
			sets = append(sets, `subscription_status = CASE
				WHEN subscription_status IN ? THEN subscription_status
				ELSE ? END`)
			args = append(args, update.KeepStatuses, *update.Status)
		} else {
			sets = append(sets, "subscription_status = ?")
			args = append(args, *update.Status)
		}
	}
	if update.NextBillingDate != nil {
		sets = append(sets, `next_billing_date = CASE
			WHEN next_billing_date IS NULL OR next_billing_date < ? THEN ?
			ELSE next_billing_date END`)
		args = append(args, *update.NextBillingDate, *update.NextBillingDate)
	}
	if update.EndDate != nil {
		if keep {
			sets = append(sets, `subscription_end_date = CASE
				WHEN subscription_status IN ? THEN subscription_end_date
				ELSE ? END`)
			args = append(args, update.KeepStatuses, *update.EndDate)
		} else {
			sets = append(sets, "subscription_end_date = ?")
			args = append(args, *update.EndDate)
		}
	}
	args = append(args, key)

	res := db.WithContext(ctx).Exec(
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE `+where,
		args...,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdatePlanBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string, update subscriptiondomain.PlanUpdate) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE profiles
		 SET subscription_plan = ?, monthly_amount = ?, max_licenses = ?, updated_at = ?
		 WHERE stripe_subscription_id = ?`,
		update.Plan,
		update.MonthlyAmount,
		update.MaxLicenses,
		update.UpdatedAt,
		subscriptionID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, entry *subscriptiondomain.PaymentHistory) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_history (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		entry.ID,
		entry.OwnerID,
		entry.Amount,
		entry.Currency,
		entry.Status,
		entry.PaymentType,
		entry.PlanName,
		entry.StripeInvoiceID,
		entry.StripePaymentIntentID,
		entry.Description,
		entry.ReceiptURL,
		entry.RefundID,
		entry.RefundAmount,
		entry.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, entry *subscriptiondomain.SubscriptionEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO subscription_events (
			id, owner_id, event_type, from_plan, to_plan, amount, stripe_event_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		entry.ID,
		entry.OwnerID,
		entry.EventType,
		entry.FromPlan,
		entry.ToPlan,
		entry.Amount,
		entry.StripeEventID,
		entry.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, ownerID string, after *subscriptiondomain.PaymentCursor, limit int) ([]subscriptiondomain.PaymentHistory, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payment_history
		WHERE owner_id = ?`
	args := []any{ownerID}
	if after != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, after.CreatedAt, after.CreatedAt, after.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var items []subscriptiondomain.PaymentHistory
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, ownerID string, paymentID snowflake.ID) (*subscriptiondomain.PaymentHistory, error) {
	var item subscriptiondomain.PaymentHistory
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payment_history
		 WHERE owner_id = ? AND id = ?
		 LIMIT 1`,
		ownerID,
		paymentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func nullable(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
