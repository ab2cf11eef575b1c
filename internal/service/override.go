package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// verifyOverride checks that the override names an active manager or owner
// of the outlet and that the PIN matches their stored hash.
func (m *OrderManager) verifyOverride(ctx context.Context, outletID uuid.UUID, o *Override) error {
	if o == nil || o.ManagerID == uuid.Nil || o.PIN == "" {
		return ErrOverrideRequired
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout())
	defer cancel()

	user, err := m.store.GetOutletUser(ctx, database.GetOutletUserParams{ID: o.ManagerID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOverrideRejected
		}
		return apperr.Unavailable("verify override", fmt.Errorf("get outlet user: %w", err))
	}
	if !user.IsActive || (user.Role != enum.UserRoleManager && user.Role != enum.UserRoleOwner) {
		return ErrOverrideRejected
	}
	if !user.PinHash.Valid {
		return ErrOverrideRejected
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PinHash.String), []byte(o.PIN)); err != nil {
		return ErrOverrideRejected
	}
	return nil
}
