// Package handler содержит HTTP-обработчики API программы лояльности.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/service"
	"github.com/mmeshcher/stampcard/internal/tenantconfig"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	AddStamp(ctx context.Context, slug, customerID, pin string) (*service.StampResult, error)
	ClaimStamp(ctx context.Context, token, customerID string) (*service.StampResult, error)
	SpinWheel(ctx context.Context, slug, customerID string) (*service.SpinResult, error)
	RedeemReward(ctx context.Context, slug, pin, rewardID string, customerID *string) (*model.Reward, error)
	RedeemByToken(ctx context.Context, token, customerID, rewardID string) (*model.Reward, error)
	GetWallet(ctx context.Context, slug, customerID string) (*service.Wallet, error)
	GetBusinessConfig(ctx context.Context, slug string) (*tenantconfig.Resolved, error)
	GetAdminConfig(ctx context.Context, slug, pin string) (*tenantconfig.Resolved, error)
	UpdateConfig(ctx context.Context, slug, pin string, raw []byte) (tenantconfig.Config, error)
	IssueStampQR(ctx context.Context, slug, pin string) (*service.StampQR, error)
}

// Handler реализует HTTP-обработчики API программы лояльности.
type Handler struct {
	service  Service
	logger   *zap.Logger
	pinLimit func(http.Handler) http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// pinLimit ограничивает частоту запросов к эндпоинтам с PIN; nil отключает ограничение.
func NewHandler(s Service, logger *zap.Logger, pinLimit func(http.Handler) http.Handler) *Handler {
	if pinLimit == nil {
		pinLimit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		service:  s,
		logger:   logger,
		pinLimit: pinLimit,
	}
}

// staffPin принимает PIN в поле pin или staffPin.
type staffPin struct {
	Pin      string `json:"pin"`
	StaffPin string `json:"staffPin"`
}

func (p staffPin) value() string {
	if p.StaffPin != "" {
		return p.StaffPin
	}
	return p.Pin
}

type rewardResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Status     string  `json:"status"`
	ExpiresAt  string  `json:"expires_at"`
	CreatedAt  string  `json:"created_at"`
	RedeemedAt *string `json:"redeemed_at,omitempty"`
	Expired    *bool   `json:"expired,omitempty"`
}

func newRewardResponse(r *model.Reward) *rewardResponse {
	if r == nil {
		return nil
	}
	resp := &rewardResponse{
		ID:        r.ID.String(),
		Title:     r.Title,
		Source:    string(r.Source),
		Status:    string(r.Status),
		ExpiresAt: r.ExpiresAt.Format(time.RFC3339),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if r.RedeemedAt != nil {
		s := r.RedeemedAt.Format(time.RFC3339)
		resp.RedeemedAt = &s
	}
	return resp
}

type stampResponse struct {
	OK            bool            `json:"ok"`
	Stamps        int             `json:"stamps"`
	CreatedReward *rewardResponse `json:"createdReward,omitempty"`
}

type addStampRequest struct {
	BarSlug    string `json:"barSlug"`
	CustomerID string `json:"customerId"`
	staffPin
}

// AddStamp начисляет штамп клиенту по PIN сотрудника.
func (h *Handler) AddStamp(w http.ResponseWriter, r *http.Request) {
	var req addStampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.BarSlug == "" || req.CustomerID == "" || req.value() == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.AddStamp(r.Context(), req.BarSlug, req.CustomerID, req.value())
	if err != nil {
		h.writeError(w, "add stamp", err, zap.String("slug", req.BarSlug))
		return
	}

	writeJSON(w, http.StatusOK, stampResponse{OK: true, Stamps: res.Stamps, CreatedReward: newRewardResponse(res.Reward)})
}

type claimStampRequest struct {
	Token      string `json:"token"`
	CustomerID string `json:"customerId"`
}

// ClaimStamp начисляет штамп по отсканированному QR-коду заведения.
func (h *Handler) ClaimStamp(w http.ResponseWriter, r *http.Request) {
	var req claimStampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Token == "" || req.CustomerID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.ClaimStamp(r.Context(), req.Token, req.CustomerID)
	if err != nil {
		h.writeError(w, "claim stamp", err)
		return
	}

	writeJSON(w, http.StatusOK, stampResponse{OK: true, Stamps: res.Stamps, CreatedReward: newRewardResponse(res.Reward)})
}

type spinRequest struct {
	BarSlug    string `json:"barSlug"`
	CustomerID string `json:"customerId"`
}

type spinResponse struct {
	Prize     string          `json:"prize"`
	SegmentID string          `json:"segmentId"`
	Type      string          `json:"type"`
	Saved     bool            `json:"saved"`
	Stamps    *int            `json:"stamps,omitempty"`
	Reward    *rewardResponse `json:"reward,omitempty"`
}

// Spin вращает колесо призов.
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	var req spinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.BarSlug == "" || req.CustomerID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.SpinWheel(r.Context(), req.BarSlug, req.CustomerID)
	if err != nil {
		h.writeError(w, "spin wheel", err, zap.String("slug", req.BarSlug))
		return
	}

	resp := spinResponse{
		Prize:     res.Segment.Label,
		SegmentID: res.Segment.ID,
		Type:      string(res.Segment.Type),
		Saved:     res.Stamps != nil || res.Reward != nil,
		Reward:    newRewardResponse(res.Reward),
	}
	if res.Stamps != nil {
		resp.Stamps = &res.Stamps.Stamps
		if resp.Reward == nil {
			resp.Reward = newRewardResponse(res.Stamps.Reward)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type redeemRequest struct {
	RewardID   string  `json:"rewardId"`
	BarSlug    string  `json:"barSlug"`
	CustomerID *string `json:"customerId"`
	staffPin
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Title string `json:"title,omitempty"`
}

// Redeem гасит награду по PIN сотрудника.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.RewardID == "" || req.BarSlug == "" || req.value() == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.CustomerID != nil && *req.CustomerID == "" {
		req.CustomerID = nil
	}

	if _, err := h.service.RedeemReward(r.Context(), req.BarSlug, req.value(), req.RewardID, req.CustomerID); err != nil {
		h.writeError(w, "redeem reward", err, zap.String("slug", req.BarSlug), zap.String("reward", req.RewardID))
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type redeemByQRRequest struct {
	Token      string `json:"token"`
	CustomerID string `json:"customerId"`
	RewardID   string `json:"rewardId"`
}

// RedeemByQR гасит награду клиентом по QR-коду заведения.
func (h *Handler) RedeemByQR(w http.ResponseWriter, r *http.Request) {
	var req redeemByQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Token == "" || req.CustomerID == "" || req.RewardID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	reward, err := h.service.RedeemByToken(r.Context(), req.Token, req.CustomerID, req.RewardID)
	if err != nil {
		h.writeError(w, "redeem by qr", err, zap.String("reward", req.RewardID))
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true, Title: reward.Title})
}

type walletResponse struct {
	Stamps      int               `json:"stamps"`
	Goal        int               `json:"goal"`
	RewardTitle string            `json:"rewardTitle"`
	Rewards     []*rewardResponse `json:"rewards"`
	Redeemed    []*rewardResponse `json:"redeemed"`
}

func walletRewards(in []service.WalletReward) []*rewardResponse {
	out := make([]*rewardResponse, 0, len(in))
	for _, wr := range in {
		resp := newRewardResponse(&wr.Reward)
		expired := wr.Expired
		resp.Expired = &expired
		out = append(out, resp)
	}
	return out
}

// GetWallet возвращает штампы и награды клиента в заведении.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	customerID := r.URL.Query().Get("customerId")
	if slug == "" || customerID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), slug, customerID)
	if err != nil {
		h.writeError(w, "get wallet", err, zap.String("slug", slug))
		return
	}

	writeJSON(w, http.StatusOK, walletResponse{
		Stamps:      wallet.Stamps,
		Goal:        wallet.Goal,
		RewardTitle: wallet.RewardTitle,
		Rewards:     walletRewards(wallet.Active),
		Redeemed:    walletRewards(wallet.Redeemed),
	})
}

type invalidConfigResponse struct {
	Error  string   `json:"error"`
	Issues []string `json:"issues"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// apiTextKeys сопоставляет ошибки сервиса ключам раздела texts.api конфигурации заведения.
// Порядок важен: конкретные ошибки проверяются раньше своих классов.
var apiTextKeys = []struct {
	err error
	key string
}{
	{model.ErrTenantNotFound, "bar_not_found"},
	{model.ErrRewardNotFound, "reward_not_found"},
	{model.ErrRewardNotActive, "reward_not_active"},
	{model.ErrWrongOwner, "reward_wrong_user"},
	{model.ErrWheelDisabled, "wheel_disabled"},
	{model.ErrNoEligibleSegments, "wheel_disabled"},
	{model.ErrUnauthorized, "invalid_pin"},
	{model.ErrDailyLimitReached, "daily_limit_reached"},
	{model.ErrValidation, "missing_params"},
}

// writeError переводит ошибку сервиса в HTTP-статус. Текст ответа берётся из
// конфигурации заведения, если ошибка произошла после его определения.
// Текст внутренних ошибок клиенту не отдаётся, только логируется.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	var cfgErr *model.InvalidConfigError
	if errors.As(err, &cfgErr) {
		writeJSON(w, http.StatusUnprocessableEntity, invalidConfigResponse{Error: "Invalid config", Issues: cfgErr.Issues})
		return
	}

	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(code), code)
		return
	}

	writeJSON(w, code, errorResponse{Error: apiText(err, code)})
}

func apiText(err error, code int) string {
	cfg := tenantconfig.Defaults()
	var tenantErr *service.TenantError
	if errors.As(err, &tenantErr) {
		cfg = tenantErr.Config
	}

	for _, k := range apiTextKeys {
		if errors.Is(err, k.err) {
			if text := cfg.APIText(k.key); text != "" {
				return text
			}
			break
		}
	}
	return http.StatusText(code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrAuth):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrRateLimit):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
