// Package plan holds the subscription tiers owners can buy and their Stripe prices.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	Basic        = "basic"
	Starter      = "starter"
	Professional = "professional"
	Enterprise   = "enterprise"
	Unlimited    = "unlimited"
)

// UnlimitedLicenses marks a plan without a license cap.
const UnlimitedLicenses = -1

var (
	ErrUnknownPlan  = errors.New("invalid_plan")
	ErrEmptyCatalog = errors.New("plan_catalog_empty")
	ErrPriceMissing = errors.New("plan_price_missing")
)

// Plan is a fixed subscription tier. MonthlyAmount is in minor units.
type Plan struct {
	ID            string   `json:"id" mapstructure:"id"`
	Name          string   `json:"name" mapstructure:"name"`
	MonthlyAmount int64    `json:"monthlyAmount" mapstructure:"monthly_amount"`
	Currency      string   `json:"currency" mapstructure:"currency"`
	MaxLicenses   int      `json:"maxLicenses" mapstructure:"max_licenses"`
	Features      []string `json:"features" mapstructure:"features"`
	StripePriceID string   `json:"stripePriceId,omitempty" mapstructure:"stripe_price_id"`
}

func (p Plan) UnlimitedLicenses() bool {
	return p.MaxLicenses == UnlimitedLicenses
}

// FormattedAmount renders the monthly amount as a decimal string, e.g. "24.99".
func (p Plan) FormattedAmount() string {
	return FormatAmount(p.MonthlyAmount)
}

func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// DefaultPlans is the catalog used when no plans.yml is mounted.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:            Basic,
			Name:          "Basic",
			MonthlyAmount: 2499,
			Currency:      "usd",
			MaxLicenses:   2,
			Features:      []string{"online_booking", "service_menu", "email_reminders"},
		},
		{
			ID:            Starter,
			Name:          "Starter",
			MonthlyAmount: 4999,
			Currency:      "usd",
			MaxLicenses:   5,
			Features:      []string{"online_booking", "service_menu", "email_reminders", "staff_schedules"},
		},
		{
			ID:            Professional,
			Name:          "Professional",
			MonthlyAmount: 9999,
			Currency:      "usd",
			MaxLicenses:   10,
			Features:      []string{"online_booking", "service_menu", "email_reminders", "staff_schedules", "analytics"},
		},
		{
			ID:            Enterprise,
			Name:          "Enterprise",
			MonthlyAmount: 19999,
			Currency:      "usd",
			MaxLicenses:   25,
			Features:      []string{"online_booking", "service_menu", "email_reminders", "staff_schedules", "analytics", "priority_support"},
		},
		{
			ID:            Unlimited,
			Name:          "Unlimited",
			MonthlyAmount: 29999,
			Currency:      "usd",
			MaxLicenses:   UnlimitedLicenses,
			Features:      []string{"online_booking", "service_menu", "email_reminders", "staff_schedules", "analytics", "priority_support", "multi_location"},
		},
	}
}

// Catalog is an immutable lookup table over plans.
type Catalog struct {
	plans   []Plan
	byID    map[string]Plan
	byName  map[string]Plan
	byPrice map[string]Plan
}

// NewCatalog validates plans and builds the lookup indexes.
func NewCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		plans:   make([]Plan, 0, len(plans)),
		byID:    make(map[string]Plan, len(plans)),
		byName:  make(map[string]Plan, len(plans)),
		byPrice: make(map[string]Plan, len(plans)),
	}
	for _, p := range plans {
		p.ID = normalize(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		p.StripePriceID = strings.TrimSpace(p.StripePriceID)
		p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
		if p.Currency == "" {
			p.Currency = "usd"
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		if p.StripePriceID != "" {
			if _, dup := c.byPrice[p.StripePriceID]; dup {
				return nil, fmt.Errorf("duplicate stripe price id %q", p.StripePriceID)
			}
			c.byPrice[p.StripePriceID] = p
		}
		c.byID[p.ID] = p
		c.byName[normalize(p.Name)] = p
		c.plans = append(c.plans, p)
	}

	sort.SliceStable(c.plans, func(i, j int) bool {
		return c.plans[i].MonthlyAmount < c.plans[j].MonthlyAmount
	})
	return c, nil
}

func validatePlan(p Plan) error {
	if p.ID == "" {
		return errors.New("plan id is required")
	}
	if p.MonthlyAmount <= 0 {
		return fmt.Errorf("plan %q: monthly_amount must be positive", p.ID)
	}
	if p.MaxLicenses == 0 || p.MaxLicenses < UnlimitedLicenses {
		return fmt.Errorf("plan %q: max_licenses must be positive or -1", p.ID)
	}
	return nil
}

// GetByID looks a plan up by its identifier.
func (c *Catalog) GetByID(id string) (Plan, bool) {
	if c == nil {
		return Plan{}, false
	}
	p, ok := c.byID[normalize(id)]
	return p, ok
}

// GetByName accepts either the identifier or the display name.
func (c *Catalog) GetByName(name string) (Plan, bool) {
	if c == nil {
		return Plan{}, false
	}
	if p, ok := c.byID[normalize(name)]; ok {
		return p, true
	}
	p, ok := c.byName[normalize(name)]
	return p, ok
}

func (c *Catalog) GetByPriceID(priceID string) (Plan, bool) {
	if c == nil {
		return Plan{}, false
	}
	p, ok := c.byPrice[strings.TrimSpace(priceID)]
	return p, ok
}

// All returns the plans ordered by price.
func (c *Catalog) All() []Plan {
	if c == nil {
		return nil
	}
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// withPriceIDs returns plans with the given price IDs applied on top.
func withPriceIDs(plans []Plan, priceIDs map[string]string) []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	for i := range out {
		if v, ok := priceIDs[normalize(out[i].ID)]; ok && strings.TrimSpace(v) != "" {
			out[i].StripePriceID = strings.TrimSpace(v)
		}
	}
	return out
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
