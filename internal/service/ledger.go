package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/repository"
	"github.com/mmeshcher/stampcard/internal/tenantconfig"
)

// dailyLimitKinds перечисляет виды событий, учитываемые в дневном лимите.
var dailyLimitKinds = []model.StampEventKind{model.StampEventStaff, model.StampEventQR}

// StampResult описывает итог начисления штампов.
type StampResult struct {
	// Stamps содержит счётчик после возможного обнуления (0, если создана награда).
	Stamps int
	// Reward содержит созданную награду или nil.
	Reward *model.Reward
}

// AddStamp начисляет один штамп клиенту по PIN сотрудника заведения.
func (s *Service) AddStamp(ctx context.Context, slug, customerID, pin string) (_ *StampResult, err error) {
	if err := checkCustomerID(customerID); err != nil {
		return nil, err
	}
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	defer withTenant(res, &err)

	staffID, err := s.VerifyStaffPin(ctx, res.Tenant.ID, pin, model.AnyStaffRole...)
	if err != nil {
		return nil, err
	}

	return s.addStamp(ctx, res, customerID, 1, &staffID, model.StampEventStaff)
}

// ClaimStamp начисляет штамп по QR-токену заведения (самообслуживание клиента).
func (s *Service) ClaimStamp(ctx context.Context, tok, customerID string) (_ *StampResult, err error) {
	if err := checkCustomerID(customerID); err != nil {
		return nil, err
	}
	slug, err := s.signer.Verify(tok)
	if err != nil {
		return nil, err
	}
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	defer withTenant(res, &err)

	return s.addStamp(ctx, res, customerID, 1, nil, model.StampEventQR)
}

func (s *Service) addStamp(ctx context.Context, res *tenantconfig.Resolved, customerID string, amount int, staffID *uuid.UUID, kind model.StampEventKind) (*StampResult, error) {
	now := s.now()

	var result StampResult
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		var err error
		result, err = applyStamps(ctx, tx, res, customerID, amount, staffID, kind, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyStamps выполняет начисление внутри транзакции: блокировка членства,
// проверка дневного лимита, запись события, инкремент и проверка цели.
func applyStamps(
	ctx context.Context,
	tx repository.LedgerTx,
	res *tenantconfig.Resolved,
	customerID string,
	amount int,
	staffID *uuid.UUID,
	kind model.StampEventKind,
	now time.Time,
) (StampResult, error) {
	tenantID := res.Tenant.ID
	cfg := res.Config

	if _, err := tx.LockMembership(ctx, tenantID, customerID); err != nil {
		return StampResult{}, err
	}

	if limit := cfg.Stamps.DailyLimit; limit > 0 && kind.CountsTowardDailyLimit() {
		n, err := tx.CountStampEventsSince(ctx, tenantID, customerID, dailyLimitKinds, startOfDayUTC(now))
		if err != nil {
			return StampResult{}, err
		}
		if n >= limit {
			return StampResult{}, model.ErrDailyLimitReached
		}
	}

	err := tx.AppendStampEvent(ctx, &model.StampEvent{
		ID:         uuid.New(),
		TenantID:   tenantID,
		CustomerID: customerID,
		StaffID:    staffID,
		Kind:       kind,
		Amount:     amount,
		CreatedAt:  now,
	})
	if err != nil {
		return StampResult{}, err
	}

	count, err := tx.IncrementStamps(ctx, tenantID, customerID, amount, now)
	if err != nil {
		return StampResult{}, err
	}

	goal := cfg.Stamps.Goal
	if goal <= 0 || count < goal {
		return StampResult{Stamps: count}, nil
	}

	reward := &model.Reward{
		ID:         uuid.New(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Source:     model.RewardSourceStamps,
		Title:      cfg.StampRewardTitle(),
		Status:     model.RewardStatusActive,
		ExpiresAt:  rewardExpiry(cfg, now),
		CreatedAt:  now,
	}
	if err := tx.CreateReward(ctx, reward); err != nil {
		return StampResult{}, err
	}
	if err := tx.ResetStamps(ctx, tenantID, customerID, now); err != nil {
		return StampResult{}, fmt.Errorf("reset after reward: %w", err)
	}

	return StampResult{Stamps: 0, Reward: reward}, nil
}

// startOfDayUTC возвращает полночь по UTC для момента t. Граница суток для дневного лимита.
func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
