package subscription

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Catalog is the immutable set of plans known to the core.
type Catalog struct {
	currency string
	plans    map[string]Plan
	order    []string
}

// catalogFile is the on-disk YAML layout.
//
//	currency: INR
//	plans:
//	  - id: pro_monthly
//	    tier: pro
//	    billing_period: monthly
//	    price: {amount: 49900}
//	    trial_days: 30
//	    trial_amount: {amount: 100}
//	    external_plan_ref: plan_JkQ4v5s2xYz
type catalogFile struct {
	Currency string `yaml:"currency" validate:"required,len=3"`
	Plans    []Plan `yaml:"plans" validate:"required,min=1,dive"`
}

// NewCatalog validates plans and returns a Catalog. All plans must share one
// currency; plans without a currency inherit the first plan's.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: at least one plan is required", ErrInvalidPlanConfiguration)
	}
	currency := plans[0].Price.Currency
	return newCatalog(currency, plans)
}

// MustNewCatalog is like NewCatalog but panics on invalid plans.
func MustNewCatalog(plans ...Plan) *Catalog {
	c, err := NewCatalog(plans...)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog decodes and validates a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	return newCatalog(f.Currency, f.Plans)
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

func newCatalog(currency string, plans []Plan) (*Catalog, error) {
	c := &Catalog{
		currency: currency,
		plans:    make(map[string]Plan, len(plans)),
		order:    make([]string, 0, len(plans)),
	}

	for _, p := range plans {
		if p.Price.Currency == "" {
			p.Price.Currency = currency
		}
		if p.TrialAmount.Currency == "" {
			p.TrialAmount.Currency = currency
		}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: plan %q: %v", ErrInvalidPlanConfiguration, p.ID, err)
		}
		if p.Price.Currency != currency || p.TrialAmount.Currency != currency {
			return nil, fmt.Errorf("%w: plan %q: currency must be %s", ErrInvalidPlanConfiguration, p.ID, currency)
		}
		if p.HasTrial() && p.TrialAmount.Amount <= 0 {
			return nil, fmt.Errorf("%w: plan %q: trial plans need a trial amount", ErrInvalidPlanConfiguration, p.ID)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidPlanConfiguration, p.ID)
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}

	return c, nil
}

// Plan returns the plan with the given id or ErrPlanNotFound.
func (c *Catalog) Plan(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// Plans returns all plans in declaration order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// Currency is the single billing currency of the catalog.
func (c *Catalog) Currency() string {
	return c.currency
}

// PlanByExternalRef finds the plan mapped to a gateway plan identifier.
func (c *Catalog) PlanByExternalRef(ref string) (Plan, error) {
	idx := slices.IndexFunc(c.order, func(id string) bool { return c.plans[id].ExternalPlanRef == ref })
	if idx < 0 {
		return Plan{}, fmt.Errorf("%w: external ref %s", ErrPlanNotFound, ref)
	}
	return c.plans[c.order[idx]], nil
}
