package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/repository"
	"github.com/mmeshcher/stampcard/internal/wheel"
)

// SpinResult описывает итог вращения колеса.
type SpinResult struct {
	SpinID  uuid.UUID
	Segment model.WheelSegment
	Effect  wheel.Effect
	// Stamps заполняется для сектора со штампами.
	Stamps *StampResult
	// Reward содержит награду сектора reward или nil.
	Reward *model.Reward
}

// SpinWheel вращает колесо призов заведения для клиента и применяет выпавший эффект.
// Запись о вращении и эффект фиксируются в одной транзакции.
func (s *Service) SpinWheel(ctx context.Context, slug, customerID string) (_ *SpinResult, err error) {
	if err := checkCustomerID(customerID); err != nil {
		return nil, err
	}
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	defer withTenant(res, &err)

	if !res.Config.WheelActive() {
		return nil, model.ErrWheelDisabled
	}

	segment, effect, err := s.engine.Spin(res.Config.Wheel.Segments)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := SpinResult{
		SpinID:  uuid.New(),
		Segment: segment,
		Effect:  effect,
	}

	err = s.repo.InTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		spin := &model.WheelSpin{
			ID:           result.SpinID,
			TenantID:     res.Tenant.ID,
			CustomerID:   customerID,
			SegmentID:    segment.ID,
			SegmentLabel: segment.Label,
			SegmentType:  segment.Type,
			CreatedAt:    now,
		}

		switch effect.Kind {
		case wheel.EffectStamp:
			stamps, err := applyStamps(ctx, tx, res, customerID, effect.Stamps, nil, model.StampEventWheel, now)
			if err != nil {
				return err
			}
			result.Stamps = &stamps

		case wheel.EffectReward:
			reward := &model.Reward{
				ID:         uuid.New(),
				TenantID:   res.Tenant.ID,
				CustomerID: customerID,
				Source:     model.RewardSourceWheel,
				Title:      effect.RewardTitle,
				Status:     model.RewardStatusActive,
				ExpiresAt:  rewardExpiry(res.Config, now),
				CreatedAt:  now,
			}
			if err := tx.CreateReward(ctx, reward); err != nil {
				return err
			}
			spin.RewardID = &reward.ID
			result.Reward = reward
		}

		return tx.AppendWheelSpin(ctx, spin)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
