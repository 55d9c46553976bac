// Package service реализует бизнес-логику программы лояльности со штампами.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/repository"
	"github.com/mmeshcher/stampcard/internal/tenantconfig"
	"github.com/mmeshcher/stampcard/internal/token"
	"github.com/mmeshcher/stampcard/internal/validation"
	"github.com/mmeshcher/stampcard/internal/wheel"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	InTx(ctx context.Context, fn repository.TxFunc) error
	GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	UpdateTenantConfig(ctx context.Context, tenantID uuid.UUID, raw []byte) error
	GetStaffByPinHash(ctx context.Context, tenantID uuid.UUID, pinHash string) (*model.StaffUser, error)
	GetReward(ctx context.Context, tenantID, rewardID uuid.UUID) (*model.Reward, error)
	MarkRewardRedeemed(ctx context.Context, tenantID, rewardID uuid.UUID, at time.Time) (bool, error)
	GetStampsCount(ctx context.Context, tenantID uuid.UUID, customerID string) (int, error)
	ListRewards(ctx context.Context, tenantID uuid.UUID, customerID string, status model.RewardStatus) ([]model.Reward, error)
}

// Publisher рассылает другим процессам сигнал об изменении конфигурации заведения.
type Publisher interface {
	PublishInvalidation(ctx context.Context, slug string) error
}

// Service содержит бизнес-логику программы лояльности.
type Service struct {
	repo      Repository
	resolver  *tenantconfig.Resolver
	signer    *token.Signer
	engine    *wheel.Engine
	publisher Publisher
	baseURL   string
	now       func() time.Time
}

// TenantError связывает ошибку операции с конфигурацией заведения, в котором
// она произошла. HTTP-слой берёт из неё тексты ответов заведения.
type TenantError struct {
	Config tenantconfig.Config
	Err    error
}

func (e *TenantError) Error() string {
	return e.Err.Error()
}

func (e *TenantError) Unwrap() error {
	return e.Err
}

// withTenant оборачивает *errp в TenantError. Вызывается через defer после
// успешного разрешения заведения.
func withTenant(res *tenantconfig.Resolved, errp *error) {
	if *errp != nil {
		*errp = &TenantError{Config: res.Config, Err: *errp}
	}
}

// Option настраивает Service.
type Option func(*Service)

// WithConfigTTL задаёт время жизни кэша конфигураций заведений.
func WithConfigTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.resolver = tenantconfig.NewResolver(s.repo, ttl)
	}
}

// WithEngine подменяет движок колеса призов.
func WithEngine(e *wheel.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithPublisher включает рассылку инвалидаций конфигурации.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithBaseURL задаёт публичный адрес, от которого строятся ссылки для QR.
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = u }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт новый сервис с указанным репозиторием и подписчиком токенов.
func NewService(repo Repository, signer *token.Signer, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		signer: signer,
		engine: wheel.NewEngine(nil),
		now:    time.Now,
	}
	s.resolver = tenantconfig.NewResolver(repo, tenantconfig.DefaultTTL)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// InvalidateConfig сбрасывает закэшированную конфигурацию заведения.
func (s *Service) InvalidateConfig(slug string) {
	s.resolver.Invalidate(slug)
}

func (s *Service) resolveTenant(ctx context.Context, slug string) (*tenantconfig.Resolved, error) {
	if !validation.IsValidSlug(slug) {
		return nil, fmt.Errorf("%w: invalid tenant slug", model.ErrValidation)
	}
	return s.resolver.Resolve(ctx, slug)
}

func checkCustomerID(customerID string) error {
	if !validation.IsValidCustomerID(customerID) {
		return fmt.Errorf("%w: invalid customer id", model.ErrValidation)
	}
	return nil
}

func parseRewardID(rewardID string) (uuid.UUID, error) {
	id, err := uuid.Parse(rewardID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid reward id", model.ErrValidation)
	}
	return id, nil
}

func rewardExpiry(cfg tenantconfig.Config, now time.Time) time.Time {
	return now.AddDate(0, 0, cfg.Rewards.ExpiresDays)
}
