package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cartloop/recurbill/internal/cache"
	"github.com/cartloop/recurbill/internal/domain/orderline"
	"github.com/cartloop/recurbill/internal/domain/subscription"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/types"
)

const attributeCacheExpiry = 15 * time.Minute

// AttributeService resolves the billing attributes of a subscription from its
// three possible sources: the snapshot stored on the row, the live
// originating order line, and caller-supplied defaults. The snapshot always
// wins, then the live order line, then defaults. A resolution that had to
// consult the live order line writes the merged result back onto the row so
// the subscription keeps billing after the order line is deleted.
type AttributeService interface {
	Resolve(ctx context.Context, sub *subscription.Subscription, defaults map[string]string) (types.BillingAttributes, error)

	// SnapshotFromOrderLine builds a fresh snapshot from a live order line,
	// used when a subscription is first scheduled.
	SnapshotFromOrderLine(ctx context.Context, orderLineID string) (*subscription.AttributeSnapshot, error)

	// InvalidateCache drops the memoized attributes for a subscription.
	InvalidateCache(ctx context.Context, subscriptionID string)
}

type attributeService struct {
	ServiceParams
}

func NewAttributeService(params ServiceParams) AttributeService {
	return &attributeService{ServiceParams: params}
}

func (s *attributeService) Resolve(ctx context.Context, sub *subscription.Subscription, defaults map[string]string) (types.BillingAttributes, error) {
	cacheKey := cache.PrefixBillingAttributes + sub.ID
	if len(defaults) == 0 {
		if cached, found := s.Cache.Get(ctx, cacheKey); found {
			if attrs, ok := cached.(types.BillingAttributes); ok {
				return attrs, nil
			}
		}
	}

	snapshot := sub.Snapshot
	wroteBack := false

	if !snapshot.IsComplete() {
		merged, err := s.mergeFromOrderLine(ctx, sub, snapshot, defaults)
		if err != nil {
			return types.BillingAttributes{}, err
		}
		snapshot = merged
		wroteBack = true
	}

	attrs, err := snapshot.ToBillingAttributes()
	if err != nil {
		return types.BillingAttributes{}, err
	}
	if err := attrs.Validate(); err != nil {
		return types.BillingAttributes{}, err
	}

	if wroteBack {
		if err := s.SubRepo.UpdateSnapshot(ctx, sub.ID, snapshot); err != nil {
			// the resolution itself succeeded; billing proceeds and the
			// write-back is retried on the next resolution
			s.Logger.Errorw("failed to write back attribute snapshot",
				"subscription_id", sub.ID,
				"error", err)
		} else {
			sub.Snapshot = snapshot
		}
	}

	if len(defaults) == 0 {
		s.Cache.Set(ctx, cacheKey, attrs, attributeCacheExpiry)
	}
	return attrs, nil
}

// mergeFromOrderLine fills the snapshot's missing keys from the live order
// line, then from caller defaults. Existing snapshot values are never
// overwritten.
func (s *attributeService) mergeFromOrderLine(ctx context.Context, sub *subscription.Subscription, snapshot *subscription.AttributeSnapshot, defaults map[string]string) (*subscription.AttributeSnapshot, error) {
	merged := subscription.AttributeSnapshot{}
	if snapshot != nil {
		merged = *snapshot
	}

	if sub.OrderLineID == nil || *sub.OrderLineID == "" {
		return nil, ierr.NewError("order line reference missing").
			WithHint("Subscription has an incomplete snapshot and no order line to resolve from").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrNotFound)
	}

	line, err := s.OrderLineRepo.GetWithAttributes(ctx, *sub.OrderLineID)
	if err != nil {
		return nil, err
	}

	applySnapshotValues(&merged, lineAttributeValues(line))
	applySnapshotValues(&merged, defaults)

	if merged.Name == "" {
		merged.Name = line.ProductName
	}
	if merged.Model == "" {
		merged.Model = line.ProductModel
	}
	if merged.Currency == "" {
		merged.Currency = line.Currency
	}

	return &merged, nil
}

func (s *attributeService) SnapshotFromOrderLine(ctx context.Context, orderLineID string) (*subscription.AttributeSnapshot, error) {
	line, err := s.OrderLineRepo.GetWithAttributes(ctx, orderLineID)
	if err != nil {
		return nil, err
	}

	snapshot := subscription.AttributeSnapshot{
		Name:     line.ProductName,
		Model:    line.ProductModel,
		Currency: line.Currency,
	}
	applySnapshotValues(&snapshot, lineAttributeValues(line))

	if snapshot.BillingPeriod == "" || snapshot.BillingFrequency == "" {
		return nil, ierr.NewError("order line carries no billing attributes").
			WithHint("The order line's product options do not define a billing period and frequency").
			WithReportableDetails(map[string]any{
				"order_line_id": orderLineID,
			}).
			Mark(ierr.ErrValidation)
	}
	return &snapshot, nil
}

func (s *attributeService) InvalidateCache(ctx context.Context, subscriptionID string) {
	s.Cache.Delete(ctx, cache.PrefixBillingAttributes+subscriptionID)
}

// lineAttributeValues indexes an order line's selected product options by
// normalized attribute key.
func lineAttributeValues(line *orderline.OrderLine) map[string]string {
	values := make(map[string]string, len(line.Attributes))
	for _, attr := range line.Attributes {
		values[types.NormalizeAttributeKey(attr.Name)] = strings.TrimSpace(attr.Value)
	}
	return values
}

// applySnapshotValues fills empty snapshot fields from the given key/value
// map. Keys are compared in normalized form; any key containing "domain" maps
// to the domain field, matching the loose vocabulary of the source data.
func applySnapshotValues(snapshot *subscription.AttributeSnapshot, values map[string]string) {
	for rawKey, value := range values {
		if value == "" {
			continue
		}
		key := types.NormalizeAttributeKey(rawKey)
		switch {
		case key == "billingperiod":
			if snapshot.BillingPeriod == "" {
				snapshot.BillingPeriod = value
			}
		case key == "billingfrequency":
			if snapshot.BillingFrequency == "" {
				snapshot.BillingFrequency = value
			}
		case key == "totalbillingcycles":
			if snapshot.TotalBillingCycles == 0 {
				if cycles, err := strconv.Atoi(value); err == nil && cycles > 0 {
					snapshot.TotalBillingCycles = cycles
				}
			}
		case key == "startdate":
			if snapshot.StartDate == "" {
				snapshot.StartDate = value
			}
		case strings.Contains(key, "domain"):
			if snapshot.Domain == "" {
				snapshot.Domain = value
			}
		}
	}
}
