package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/stampcard/internal/model"
)

// RedeemReward гасит награду по PIN сотрудника. Если customerID задан,
// дополнительно проверяется, что награда принадлежит этому клиенту.
func (s *Service) RedeemReward(ctx context.Context, slug, pin, rewardID string, customerID *string) (_ *model.Reward, err error) {
	id, err := parseRewardID(rewardID)
	if err != nil {
		return nil, err
	}
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	defer withTenant(res, &err)

	if _, err := s.VerifyStaffPin(ctx, res.Tenant.ID, pin, model.AnyStaffRole...); err != nil {
		return nil, err
	}

	return s.redeem(ctx, res.Tenant.ID, id, customerID)
}

// RedeemByToken гасит награду по QR-токену заведения. Владелец награды проверяется всегда.
func (s *Service) RedeemByToken(ctx context.Context, tok, customerID, rewardID string) (_ *model.Reward, err error) {
	if err := checkCustomerID(customerID); err != nil {
		return nil, err
	}
	id, err := parseRewardID(rewardID)
	if err != nil {
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

	return s.redeem(ctx, res.Tenant.ID, id, &customerID)
}

// redeem переводит награду из active в redeemed ровно один раз.
func (s *Service) redeem(ctx context.Context, tenantID, rewardID uuid.UUID, customerID *string) (*model.Reward, error) {
	reward, err := s.repo.GetReward(ctx, tenantID, rewardID)
	if err != nil {
		return nil, err
	}
	if reward.Status != model.RewardStatusActive {
		return nil, model.ErrRewardNotActive
	}
	if customerID != nil && *customerID != reward.CustomerID {
		return nil, model.ErrWrongOwner
	}

	now := s.now()
	ok, err := s.repo.MarkRewardRedeemed(ctx, tenantID, rewardID, now)
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	if !ok {
		// Параллельный запрос успел погасить награду раньше.
		return nil, model.ErrRewardNotActive
	}

	reward.Status = model.RewardStatusRedeemed
	reward.RedeemedAt = &now
	return reward, nil
}
