package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// ResolveRequest identifies the item being priced. At selects which overrides
// are effective; the zero value means now.
type ResolveRequest struct {
	ItemCode  string
	TenantID  string
	SubjectID string
	Region    catalogue.Region
	Tier      catalogue.Tier
	At        time.Time
}

// Resolver walks the pricing cascade: subject override, tenant override,
// catalogue cap (when the tenant bills at catalogue defaults), tenant fallback
// rate.
type Resolver struct {
	catalogue CatalogueLookup
	overrides OverrideRepository
	policies  PolicySource
	now       func() time.Time
	logger    *slog.Logger
}

// NewResolver creates a resolver. policies may be nil, in which case only
// overrides can price an item.
func NewResolver(lookup CatalogueLookup, overrides OverrideRepository, policies PolicySource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		catalogue: lookup,
		overrides: overrides,
		policies:  policies,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the clock used when ResolveRequest.At is zero.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the applicable price. Overrides are tried first, subject
// scope before tenant scope. The catalogue cap tier is opt-in: it applies only
// when the tenant's Policy.CatalogueDefaults is set, otherwise the cascade
// falls through to Policy.FallbackRate. An unknown item code or an exhausted
// cascade is reported as ProvenanceMissing with a reason, not as an error.
// Errors are returned only when a store cannot be read, and wrap
// ErrDownstreamUnavailable.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	res := Resolution{ItemCode: req.ItemCode, Provenance: ProvenanceMissing}
	if req.ItemCode == "" {
		res.Reason = "line item has no item code"
		return res, nil
	}
	if req.Tier == "" {
		req.Tier = catalogue.TierStandard
	}
	at := req.At
	if at.IsZero() {
		at = r.now()
	}

	item, err := r.catalogue.GetItem(ctx, req.ItemCode)
	if err != nil {
		if errors.Is(err, catalogue.ErrItemNotFound) || errors.Is(err, repository.ErrNotFound) {
			res.Reason = fmt.Sprintf("support item %s not found in catalogue", req.ItemCode)
			return res, nil
		}
		return res, fmt.Errorf("%w: catalogue lookup for %s: %v", ErrDownstreamUnavailable, req.ItemCode, err)
	}
	res.ItemName = item.Name
	res.Unit = item.Unit
	res.QuoteRequired = item.QuoteRequired

	capAmount, hasCap := item.Cap(req.Region, req.Tier)
	if hasCap {
		c := capAmount
		res.Cap = &c
	}

	if req.SubjectID != "" {
		matched, err := r.tryOverride(ctx, Scope{TenantID: req.TenantID, SubjectID: req.SubjectID}, item, req, at, &res)
		if err != nil {
			return res, err
		}
		if matched {
			res.Provenance = ProvenanceSubject
			return finish(res), nil
		}
	}

	matched, err := r.tryOverride(ctx, Scope{TenantID: req.TenantID}, item, req, at, &res)
	if err != nil {
		return res, err
	}
	if matched {
		res.Provenance = ProvenanceTenant
		return finish(res), nil
	}

	var policy Policy
	if r.policies != nil {
		policy, err = r.policies.PricingPolicy(ctx, req.TenantID)
		if err != nil {
			return res, fmt.Errorf("%w: pricing policy for tenant %s: %v", ErrDownstreamUnavailable, req.TenantID, err)
		}
	}

	if hasCap && policy.CatalogueDefaults {
		res.Price = capAmount
		res.Provenance = ProvenanceCatalogue
		return finish(res), nil
	}

	if policy.FallbackRate != nil {
		res.Price = *policy.FallbackRate
		res.Provenance = ProvenanceFallback
		return finish(res), nil
	}

	res.Reason = missingReason(req, hasCap, policy)
	return res, nil
}

func missingReason(req ResolveRequest, hasCap bool, policy Policy) string {
	switch {
	case hasCap && !policy.CatalogueDefaults:
		return fmt.Sprintf("no approved override for %s and tenant does not bill at catalogue cap; no fallback rate configured", req.ItemCode)
	default:
		return fmt.Sprintf("no approved override for %s, no %s cap for region %q and no fallback rate configured", req.ItemCode, req.Tier, req.Region)
	}
}

// tryOverride applies the active override at scope if it is usable. A
// multiplier whose base cap is missing is skipped so the cascade continues.
func (r *Resolver) tryOverride(ctx context.Context, scope Scope, item *catalogue.SupportItem, req ResolveRequest, at time.Time, res *Resolution) (bool, error) {
	o, err := r.overrides.FindActive(ctx, scope, req.ItemCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrOverrideNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: override lookup for %s: %v", ErrDownstreamUnavailable, req.ItemCode, err)
	}
	if !o.Usable(at) {
		return false, nil
	}

	price, ok := overridePrice(o.Mode, item, req.Region, req.Tier)
	if !ok {
		r.logger.Debug("multiplier override skipped, no base cap",
			"override_id", o.ID, "item_code", req.ItemCode, "region", req.Region)
		return false, nil
	}
	res.Price = price
	res.OverrideID = o.ID
	return true, nil
}

func overridePrice(mode Mode, item *catalogue.SupportItem, region catalogue.Region, tier catalogue.Tier) (decimal.Decimal, bool) {
	switch m := mode.(type) {
	case Fixed:
		return m.Amount, true
	case Multiplier:
		base := m.BasedOnTier
		if base == "" {
			base = tier
		}
		capAmount, ok := item.Cap(region, base)
		if !ok {
			return decimal.Decimal{}, false
		}
		return m.Factor.Mul(capAmount).Round(2), true
	}
	return decimal.Decimal{}, false
}

func finish(res Resolution) Resolution {
	res.ExceedsCap = res.Cap != nil && res.Price.GreaterThan(*res.Cap)
	return res
}
