package service

import (
	"context"
	"time"

	"github.com/mmeshcher/stampcard/internal/model"
)

// WalletReward описывает награду в кошельке с признаком истечения срока на момент чтения.
type WalletReward struct {
	Reward  model.Reward
	Expired bool
}

// Wallet описывает прогресс клиента в заведении.
type Wallet struct {
	Stamps      int
	Goal        int
	RewardTitle string
	Active      []WalletReward
	Redeemed    []WalletReward
}

// GetWallet возвращает счётчик штампов и награды клиента.
func (s *Service) GetWallet(ctx context.Context, slug, customerID string) (_ *Wallet, err error) {
	if err := checkCustomerID(customerID); err != nil {
		return nil, err
	}
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	defer withTenant(res, &err)

	tenantID := res.Tenant.ID

	stamps, err := s.repo.GetStampsCount(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.ListRewards(ctx, tenantID, customerID, model.RewardStatusActive)
	if err != nil {
		return nil, err
	}
	redeemed, err := s.repo.ListRewards(ctx, tenantID, customerID, model.RewardStatusRedeemed)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &Wallet{
		Stamps:      stamps,
		Goal:        res.Config.Stamps.Goal,
		RewardTitle: res.Config.StampRewardTitle(),
		Active:      walletRewards(active, now),
		Redeemed:    walletRewards(redeemed, now),
	}, nil
}

func walletRewards(rewards []model.Reward, now time.Time) []WalletReward {
	out := make([]WalletReward, 0, len(rewards))
	for _, r := range rewards {
		out = append(out, WalletReward{Reward: r, Expired: r.Expired(now)})
	}
	return out
}
