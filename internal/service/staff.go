package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/validation"
)

// HashPin возвращает hex(sha256(pin)). Тот же хеш сохраняется при заведении сотрудника.
func HashPin(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// VerifyStaffPin проверяет PIN сотрудника заведения и его роль.
// Возвращает идентификатор сотрудника.
func (s *Service) VerifyStaffPin(ctx context.Context, tenantID uuid.UUID, pin string, roles ...model.StaffRole) (uuid.UUID, error) {
	if !validation.IsValidPIN(pin) {
		return uuid.Nil, fmt.Errorf("%w: invalid pin format", model.ErrValidation)
	}

	staff, err := s.repo.GetStaffByPinHash(ctx, tenantID, HashPin(pin))
	if err != nil {
		if errors.Is(err, model.ErrStaffNotFound) {
			return uuid.Nil, model.ErrUnauthorized
		}
		return uuid.Nil, fmt.Errorf("verify staff pin: %w", err)
	}

	if !slices.Contains(roles, staff.Role) {
		return uuid.Nil, model.ErrForbidden
	}
	return staff.ID, nil
}
