package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/tenantconfig"
)

// DefaultQRSize задаёт размер PNG с QR-кодом в пикселях.
const DefaultQRSize = 512

// GetBusinessConfig возвращает публичную конфигурацию заведения.
// Невалидная конфигурация не приводит к ошибке: проблемы передаются в Issues.
func (s *Service) GetBusinessConfig(ctx context.Context, slug string) (*tenantconfig.Resolved, error) {
	return s.resolveTenant(ctx, slug)
}

// GetAdminConfig возвращает конфигурацию заведения администратору или менеджеру.
func (s *Service) GetAdminConfig(ctx context.Context, slug, pin string) (_ *tenantconfig.Resolved, err error) {
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	defer withTenant(res, &err)

	if _, err := s.VerifyStaffPin(ctx, res.Tenant.ID, pin, model.ConfigEditorRoles...); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateConfig строго проверяет и сохраняет конфигурацию заведения.
// После сохранения локальный кэш сбрасывается, остальные процессы получают
// сигнал через Publisher, если он настроен.
func (s *Service) UpdateConfig(ctx context.Context, slug, pin string, raw []byte) (_ tenantconfig.Config, err error) {
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return tenantconfig.Config{}, err
	}
	defer withTenant(res, &err)

	if _, err := s.VerifyStaffPin(ctx, res.Tenant.ID, pin, model.ConfigEditorRoles...); err != nil {
		return tenantconfig.Config{}, err
	}

	cfg, issues := tenantconfig.ValidateOverride(raw)
	if len(issues) > 0 {
		return tenantconfig.Config{}, &model.InvalidConfigError{Issues: issues}
	}

	normalized, err := tenantconfig.Marshal(cfg)
	if err != nil {
		return tenantconfig.Config{}, fmt.Errorf("marshal config: %w", err)
	}
	if err := s.repo.UpdateTenantConfig(ctx, res.Tenant.ID, normalized); err != nil {
		return tenantconfig.Config{}, err
	}

	s.resolver.Invalidate(slug)
	if s.publisher != nil {
		// Ошибка рассылки не отменяет сохранение: чужие кэши устареют не позже TTL.
		_ = s.publisher.PublishInvalidation(ctx, slug)
	}

	return cfg, nil
}

// StampQR содержит токен для QR-наклейки заведения и ссылку, которую кодирует QR.
type StampQR struct {
	Token    string
	ClaimURL string
}

// PNG рисует QR-код ссылки начисления.
func (q StampQR) PNG(size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(q.ClaimURL, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// IssueStampQR выпускает токен самообслуживания для заведения.
func (s *Service) IssueStampQR(ctx context.Context, slug, pin string) (_ *StampQR, err error) {
	res, err := s.resolveTenant(ctx, slug)
	if err != nil {
		return nil, err
	}
	defer withTenant(res, &err)

	if _, err := s.VerifyStaffPin(ctx, res.Tenant.ID, pin, model.ConfigEditorRoles...); err != nil {
		return nil, err
	}

	tok := s.signer.Issue(res.Tenant.Slug)
	return &StampQR{
		Token:    tok,
		ClaimURL: s.claimURL(res.Tenant.Slug, tok),
	}, nil
}

func (s *Service) claimURL(slug, tok string) string {
	base := strings.TrimRight(s.baseURL, "/")
	return base + "/b/" + url.PathEscape(slug) + "/claim-stamp?t=" + url.QueryEscape(tok)
}
