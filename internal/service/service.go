package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/pricing"
	"github.com/shopspring/decimal"
)

const (
	maxOrderNumberRetries = 3
	defaultStoreTimeout   = 5 * time.Second
)

// Errors for unknown ids. These are caller bugs rather than business
// conditions and map to 404 at the HTTP boundary.
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrTableNotFound   = errors.New("table not found")
	ErrAttemptNotFound = errors.New("settlement attempt not found")
	ErrNoActiveOrder   = errors.New("no active order in this session")
)

// MaxQuantity bounds a single order line, merged quantities included.
const MaxQuantity int32 = 9999

// Business errors that carry a fixed reason.
var (
	ErrProductNotFound   = apperr.Validation("product not found in this outlet")
	ErrOverrideRequired  = apperr.Conflict("the kitchen has started on this item, a manager override is required")
	ErrOverrideRejected  = apperr.Validation("manager override rejected")
	ErrTableHasOrder     = apperr.Conflict("table already has an active order")
	ErrInvalidQuantity   = apperr.Validation("quantity must be at least 1")
	ErrQuantityTooLarge  = apperr.Validation("quantity cannot exceed %d", MaxQuantity)
	ErrInvalidCustomers  = apperr.Validation("customer count must be at least 1")
	ErrInvalidOrderType  = apperr.Validation("invalid order type")
	ErrInvalidAttempt    = apperr.Validation("attempt token is required")
	ErrNothingToSettle   = apperr.Validation("order has nothing to pay")
	ErrOrderAlreadyPaid  = apperr.Conflict("order is already paid")
	ErrOrderIsCancelled  = apperr.Conflict("order is cancelled")
	ErrInvalidItemStatus = apperr.Validation("invalid item status")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Options are the pricing and store settings shared by the services.
type Options struct {
	Currency          pricing.Currency
	ServiceChargeRate decimal.Decimal
	TaxRate           decimal.Decimal
	StoreTimeout      time.Duration
}

func (o Options) timeout() time.Duration {
	if o.StoreTimeout <= 0 {
		return defaultStoreTimeout
	}
	return o.StoreTimeout
}

// classify turns a failure from a store round-trip into what callers see:
// business errors and unknown-id sentinels pass through, anything else is a
// retryable PERSISTENCE_UNAVAILABLE.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	for _, sentinel := range []error{ErrOrderNotFound, ErrItemNotFound, ErrTableNotFound, ErrAttemptNotFound, ErrNoActiveOrder} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return apperr.Unavailable(op, err)
}

// isUniqueViolation checks for pgconn error code 23505 on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
