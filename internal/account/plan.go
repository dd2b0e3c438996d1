// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"slices"

	"github.com/samber/oops"
)

// Plan identifiers of the built-in catalog.
const (
	PlanFree       = "free"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

// Plan is a named tier with a monthly price and feature list.
type Plan struct {
	ID       string   `json:"id"`
	Price    int      `json:"price"`
	Features []string `json:"features"`
}

// Catalog is an immutable set of plans.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// NewCatalog builds a catalog. Plans are listed in the given order.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if p.ID == "" {
			return nil, oops.Code(CodeInvalidInput).Errorf("plan ID cannot be empty")
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, oops.Code(CodeInvalidInput).With("plan", p.ID).Errorf("duplicate plan %q", p.ID)
		}
		p.Features = slices.Clone(p.Features)
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

var defaultCatalog = mustCatalog(
	Plan{ID: PlanFree, Price: 0, Features: []string{"10 users", "1GB storage"}},
	Plan{ID: PlanPremium, Price: 29, Features: []string{"100 users", "10GB storage", "Priority support"}},
	Plan{ID: PlanEnterprise, Price: 99, Features: []string{"Unlimited users", "100GB storage", "24/7 support"}},
)

// DefaultCatalog returns the built-in free/premium/enterprise catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

func mustCatalog(plans ...Plan) *Catalog {
	c, err := NewCatalog(plans...)
	if err != nil {
		panic(err)
	}
	return c
}

// Has reports whether id names a plan in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.plans[id]
	return ok
}

// Get returns the plan with the given id.
func (c *Catalog) Get(id string) (Plan, bool) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, false
	}
	p.Features = slices.Clone(p.Features)
	return p, true
}

// Plans returns copies of all plans in catalog order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		p, _ := c.Get(id)
		out = append(out, p)
	}
	return out
}

// Validate returns an UNKNOWN_PLAN error if id is not in the catalog.
func (c *Catalog) Validate(id string) error {
	if !c.Has(id) {
		return oops.Code(CodeUnknownPlan).
			With("plan", id).
			Errorf("plan %q does not exist", id)
	}
	return nil
}
