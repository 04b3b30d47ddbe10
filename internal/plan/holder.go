package plan

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/happyinline/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Lookup is the read side of the catalog used by the billing flows.
type Lookup interface {
	GetByID(id string) (Plan, bool)
	GetByName(name string) (Plan, bool)
	GetByPriceID(priceID string) (Plan, bool)
	All() []Plan
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Holder serves the current catalog and swaps it when plans.yml changes.
type Holder struct {
	current  atomic.Pointer[Catalog]
	priceIDs map[string]string
	log      *zap.Logger
}

// NewHolder loads plans.yml (or the defaults) and watches the file for edits.
func NewHolder(p Params) (*Holder, error) {
	v := viper.New()
	if path := strings.TrimSpace(p.Cfg.Plans.File); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plans")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/happyinline")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("HAPPYINLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	log := p.Log.Named("plan.catalog")
	h := &Holder{priceIDs: p.Cfg.Plans.PriceIDs, log: log}

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fromFile = false
	}

	if !fromFile {
		catalog, err := NewCatalog(withPriceIDs(DefaultPlans(), h.priceIDs))
		if err != nil {
			return nil, err
		}
		h.current.Store(catalog)
		log.Info("plan catalog loaded from defaults", zap.Int("plans", len(catalog.plans)))
		return h, nil
	}

	if err := h.load(v); err != nil {
		return nil, err
	}
	log.Info("plan catalog loaded", zap.String("file", v.ConfigFileUsed()))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := h.load(v); err != nil {
			log.Warn("invalid plan catalog ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("plan catalog reloaded", zap.String("file", e.Name))
	})

	return h, nil
}

// NewStaticHolder serves a fixed catalog.
func NewStaticHolder(c *Catalog) *Holder {
	h := &Holder{log: zap.NewNop()}
	h.current.Store(c)
	return h
}

func (h *Holder) load(v *viper.Viper) error {
	var plans []Plan
	if err := v.UnmarshalKey("plans", &plans); err != nil {
		return err
	}
	catalog, err := NewCatalog(withPriceIDs(plans, h.priceIDs))
	if err != nil {
		return err
	}
	h.current.Store(catalog)
	return nil
}

func (h *Holder) Catalog() *Catalog {
	return h.current.Load()
}

func (h *Holder) GetByID(id string) (Plan, bool) {
	return h.Catalog().GetByID(id)
}

func (h *Holder) GetByName(name string) (Plan, bool) {
	return h.Catalog().GetByName(name)
}

func (h *Holder) GetByPriceID(priceID string) (Plan, bool) {
	return h.Catalog().GetByPriceID(priceID)
}

func (h *Holder) All() []Plan {
	return h.Catalog().All()
}

var _ Lookup = (*Holder)(nil)
var _ Lookup = (*Catalog)(nil)
