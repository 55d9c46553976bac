package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/service"
	"github.com/mmeshcher/stampcard/internal/tenantconfig"
)

type stubService struct {
	stampResp *service.StampResult
	stampErr  error

	gotSlug, gotCustomer, gotPin, gotToken string
	gotCustomerPtr                         *string

	spinResp *service.SpinResult
	spinErr  error

	redeemResp *model.Reward
	redeemErr  error

	walletResp *service.Wallet
	walletErr  error

	configResp *tenantconfig.Resolved
	configErr  error

	updateErr error
	gotRaw    []byte

	qrResp *service.StampQR
	qrErr  error
}

func (s *stubService) AddStamp(ctx context.Context, slug, customerID, pin string) (*service.StampResult, error) {
	s.gotSlug, s.gotCustomer, s.gotPin = slug, customerID, pin
	return s.stampResp, s.stampErr
}

func (s *stubService) ClaimStamp(ctx context.Context, token, customerID string) (*service.StampResult, error) {
	s.gotToken, s.gotCustomer = token, customerID
	return s.stampResp, s.stampErr
}

func (s *stubService) SpinWheel(ctx context.Context, slug, customerID string) (*service.SpinResult, error) {
	s.gotSlug, s.gotCustomer = slug, customerID
	return s.spinResp, s.spinErr
}

func (s *stubService) RedeemReward(ctx context.Context, slug, pin, rewardID string, customerID *string) (*model.Reward, error) {
	s.gotSlug, s.gotPin, s.gotCustomerPtr = slug, pin, customerID
	return s.redeemResp, s.redeemErr
}

func (s *stubService) RedeemByToken(ctx context.Context, token, customerID, rewardID string) (*model.Reward, error) {
	s.gotToken, s.gotCustomer = token, customerID
	return s.redeemResp, s.redeemErr
}

func (s *stubService) GetWallet(ctx context.Context, slug, customerID string) (*service.Wallet, error) {
	s.gotSlug, s.gotCustomer = slug, customerID
	return s.walletResp, s.walletErr
}

func (s *stubService) GetBusinessConfig(ctx context.Context, slug string) (*tenantconfig.Resolved, error) {
	s.gotSlug = slug
	return s.configResp, s.configErr
}

func (s *stubService) GetAdminConfig(ctx context.Context, slug, pin string) (*tenantconfig.Resolved, error) {
	s.gotSlug, s.gotPin = slug, pin
	return s.configResp, s.configErr
}

func (s *stubService) UpdateConfig(ctx context.Context, slug, pin string, raw []byte) (tenantconfig.Config, error) {
	s.gotSlug, s.gotPin, s.gotRaw = slug, pin, raw
	return tenantconfig.Defaults(), s.updateErr
}

func (s *stubService) IssueStampQR(ctx context.Context, slug, pin string) (*service.StampQR, error) {
	s.gotSlug, s.gotPin = slug, pin
	return s.qrResp, s.qrErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()
	return NewHandler(svc, zap.NewNop(), nil)
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testReward() *model.Reward {
	return &model.Reward{
		ID:         uuid.MustParse("7d4f3a52-6a41-4f0b-9f6c-0d3f1f1c2b11"),
		CustomerID: "cust-1",
		Source:     model.RewardSourceStamps,
		Title:      "Free coffee",
		Status:     model.RewardStatusActive,
		ExpiresAt:  time.Date(2026, 4, 9, 9, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestAddStamp_Success(t *testing.T) {
	svc := &stubService{stampResp: &service.StampResult{Stamps: 3}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/stamp/add", map[string]string{
		"barSlug":    "demo",
		"customerId": "cust-1",
		"staffPin":   "1111",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true,"stamps":3}`, rec.Body.String())
	assert.Equal(t, "demo", svc.gotSlug)
	assert.Equal(t, "cust-1", svc.gotCustomer)
	assert.Equal(t, "1111", svc.gotPin)
}

func TestAddStamp_PinFieldAlias(t *testing.T) {
	svc := &stubService{stampResp: &service.StampResult{Stamps: 1}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/stamp/add", map[string]string{
		"barSlug":    "demo",
		"customerId": "cust-1",
		"pin":        "2222",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2222", svc.gotPin)
}

func TestAddStamp_CreatedReward(t *testing.T) {
	svc := &stubService{stampResp: &service.StampResult{Stamps: 0, Reward: testReward()}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/stamp/add", map[string]string{
		"barSlug":    "demo",
		"customerId": "cust-1",
		"staffPin":   "1111",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"ok": true,
		"stamps": 0,
		"createdReward": {
			"id": "7d4f3a52-6a41-4f0b-9f6c-0d3f1f1c2b11",
			"title": "Free coffee",
			"source": "stamps",
			"status": "active",
			"expires_at": "2026-04-09T09:00:00Z",
			"created_at": "2026-03-10T09:00:00Z"
		}
	}`, rec.Body.String())
}

func TestAddStamp_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"barSlug":`},
		{name: "missing slug", body: `{"customerId":"c","staffPin":"1111"}`},
		{name: "missing customer", body: `{"barSlug":"demo","staffPin":"1111"}`},
		{name: "missing pin", body: `{"barSlug":"demo","customerId":"c"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			h := newTestHandler(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/api/stamp/add", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.AddStamp(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, svc.gotSlug)
		})
	}
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: model.ErrValidation, want: http.StatusBadRequest},
		{name: "invalid token", err: model.ErrInvalidToken, want: http.StatusUnauthorized},
		{name: "bad pin", err: model.ErrUnauthorized, want: http.StatusUnauthorized},
		{name: "forbidden", err: model.ErrForbidden, want: http.StatusForbidden},
		{name: "wrong owner", err: model.ErrWrongOwner, want: http.StatusForbidden},
		{name: "wheel disabled", err: model.ErrWheelDisabled, want: http.StatusForbidden},
		{name: "tenant not found", err: model.ErrTenantNotFound, want: http.StatusNotFound},
		{name: "reward not found", err: model.ErrRewardNotFound, want: http.StatusNotFound},
		{name: "already redeemed", err: model.ErrRewardNotActive, want: http.StatusConflict},
		{name: "no segments", err: model.ErrNoEligibleSegments, want: http.StatusConflict},
		{name: "daily limit", err: model.ErrDailyLimitReached, want: http.StatusTooManyRequests},
		{name: "storage", err: errors.New("connection refused"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{stampErr: tt.err}
			router := newTestHandler(t, svc).SetupRouter()

			rec := doJSON(t, router, http.MethodPost, "/api/stamp/add", map[string]string{
				"barSlug":    "demo",
				"customerId": "cust-1",
				"staffPin":   "1111",
			})

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWriteError_InternalDetailsHidden(t *testing.T) {
	svc := &stubService{stampErr: errors.New("pq: password authentication failed")}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/stamp/claim", map[string]string{
		"token":      "tok",
		"customerId": "cust-1",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestClaimStamp_Success(t *testing.T) {
	svc := &stubService{stampResp: &service.StampResult{Stamps: 5}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/stamp/claim", map[string]string{
		"token":      "signed-token",
		"customerId": "cust-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"stamps":5}`, rec.Body.String())
	assert.Equal(t, "signed-token", svc.gotToken)
}

func TestSpin_StampSegment(t *testing.T) {
	svc := &stubService{spinResp: &service.SpinResult{
		SpinID:  uuid.New(),
		Segment: model.WheelSegment{ID: "stamp1", Label: "+1 stamp", Type: model.SegmentStamp},
		Stamps:  &service.StampResult{Stamps: 4},
	}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/spin", map[string]string{
		"barSlug":    "demo",
		"customerId": "cust-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prize":"+1 stamp","segmentId":"stamp1","type":"stamp","saved":true,"stamps":4}`, rec.Body.String())
}

func TestSpin_StampSegmentReachesGoal(t *testing.T) {
	reward := testReward()
	svc := &stubService{spinResp: &service.SpinResult{
		Segment: model.WheelSegment{ID: "stamp1", Label: "+1 stamp", Type: model.SegmentStamp},
		Stamps:  &service.StampResult{Stamps: 0, Reward: reward},
	}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/spin", map[string]string{
		"barSlug":    "demo",
		"customerId": "cust-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp spinResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Reward)
	assert.Equal(t, reward.ID.String(), resp.Reward.ID)
	require.NotNil(t, resp.Stamps)
	assert.Equal(t, 0, *resp.Stamps)
}

func TestSpin_NoneSegment(t *testing.T) {
	svc := &stubService{spinResp: &service.SpinResult{
		Segment: model.WheelSegment{ID: "none", Label: "Try again", Type: model.SegmentNone},
	}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/spin", map[string]string{
		"barSlug":    "demo",
		"customerId": "cust-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prize":"Try again","segmentId":"none","type":"none","saved":false}`, rec.Body.String())
}

func TestRedeem_Success(t *testing.T) {
	svc := &stubService{redeemResp: testReward()}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/redeem", map[string]string{
		"rewardId":   "7d4f3a52-6a41-4f0b-9f6c-0d3f1f1c2b11",
		"barSlug":    "demo",
		"customerId": "",
		"staffPin":   "1111",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Nil(t, svc.gotCustomerPtr)
}

func TestRedeem_WithCustomer(t *testing.T) {
	svc := &stubService{redeemResp: testReward()}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/redeem", map[string]string{
		"rewardId":   "7d4f3a52-6a41-4f0b-9f6c-0d3f1f1c2b11",
		"barSlug":    "demo",
		"customerId": "cust-1",
		"staffPin":   "1111",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotCustomerPtr)
	assert.Equal(t, "cust-1", *svc.gotCustomerPtr)
}

func TestRedeemByQR_Success(t *testing.T) {
	svc := &stubService{redeemResp: testReward()}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/redeem/by-qr", map[string]string{
		"token":      "signed-token",
		"customerId": "cust-1",
		"rewardId":   "7d4f3a52-6a41-4f0b-9f6c-0d3f1f1c2b11",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"title":"Free coffee"}`, rec.Body.String())
}

func TestRedeemByQR_AlreadyRedeemed(t *testing.T) {
	svc := &stubService{redeemErr: model.ErrRewardNotActive}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/redeem/by-qr", map[string]string{
		"token":      "signed-token",
		"customerId": "cust-1",
		"rewardId":   "7d4f3a52-6a41-4f0b-9f6c-0d3f1f1c2b11",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetWallet_JSONResponse(t *testing.T) {
	active := testReward()
	redeemedAt := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	redeemed := testReward()
	redeemed.Status = model.RewardStatusRedeemed
	redeemed.RedeemedAt = &redeemedAt

	svc := &stubService{walletResp: &service.Wallet{
		Stamps:      2,
		Goal:        8,
		RewardTitle: "Free coffee",
		Active:      []service.WalletReward{{Reward: *active, Expired: true}},
		Redeemed:    []service.WalletReward{{Reward: *redeemed}},
	}}
	router := newTestHandler(t, svc).SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/wallet?slug=demo&customerId=cust-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp walletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Stamps)
	assert.Equal(t, 8, resp.Goal)
	require.Len(t, resp.Rewards, 1)
	require.NotNil(t, resp.Rewards[0].Expired)
	assert.True(t, *resp.Rewards[0].Expired)
	require.Len(t, resp.Redeemed, 1)
	require.NotNil(t, resp.Redeemed[0].RedeemedAt)
	assert.Equal(t, "2026-03-11T12:00:00Z", *resp.Redeemed[0].RedeemedAt)
	assert.Equal(t, "demo", svc.gotSlug)
	assert.Equal(t, "cust-1", svc.gotCustomer)
}

func TestGetWallet_EmptyListsAreArrays(t *testing.T) {
	svc := &stubService{walletResp: &service.Wallet{Goal: 8}}
	router := newTestHandler(t, svc).SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/wallet?slug=demo&customerId=cust-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rewards":[]`)
	assert.Contains(t, rec.Body.String(), `"redeemed":[]`)
}

func TestGetWallet_MissingQuery(t *testing.T) {
	router := newTestHandler(t, &stubService{}).SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/wallet?slug=demo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestHandler(t, &stubService{}).SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stamp/add", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_PinLimitOnlyOnPinRoutes(t *testing.T) {
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
	svc := &stubService{
		stampResp: &service.StampResult{Stamps: 1},
		qrResp:    &service.StampQR{Token: "t", ClaimURL: "https://x/b/demo/claim-stamp?t=t"},
	}
	router := NewHandler(svc, zap.NewNop(), blocked).SetupRouter()

	limited := []struct {
		method, target string
	}{
		{http.MethodPost, "/api/stamp/add"},
		{http.MethodPost, "/api/redeem"},
		{http.MethodPost, "/api/admin/config"},
		{http.MethodPut, "/api/admin/config"},
		{http.MethodPost, "/api/admin/stamp-qr"},
	}
	for _, tt := range limited {
		rec := doJSON(t, router, tt.method, tt.target, map[string]string{})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, "%s %s", tt.method, tt.target)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/stamp/claim", map[string]string{
		"token":      "tok",
		"customerId": "cust-1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteError_TenantTexts(t *testing.T) {
	cfg := tenantconfig.Defaults()
	cfg.Texts["api"]["wheel_disabled"] = "Ruleta apagada"

	svc := &stubService{spinErr: &service.TenantError{Config: cfg, Err: model.ErrWheelDisabled}}
	router := newTestHandler(t, svc).SetupRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/spin", map[string]string{
		"barSlug":    "demo",
		"customerId": "cust-1",
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Ruleta apagada"}`, rec.Body.String())
}

func TestWriteError_DefaultTexts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unknown tenant", err: model.ErrTenantNotFound, want: "Bar not found"},
		{name: "bad pin", err: model.ErrUnauthorized, want: "Invalid PIN"},
		{name: "daily limit", err: model.ErrDailyLimitReached, want: "Daily limit reached"},
		{name: "wrapped validation", err: fmt.Errorf("%w: invalid customer id", model.ErrValidation), want: "Missing params"},
		{name: "no text configured", err: model.ErrInvalidToken, want: "Unauthorized"},
		{
			name: "tenant text missing falls back to default",
			err:  &service.TenantError{Config: tenantconfig.Config{}, Err: model.ErrUnauthorized},
			want: "Invalid PIN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{stampErr: tt.err}
			router := newTestHandler(t, svc).SetupRouter()

			rec := doJSON(t, router, http.MethodPost, "/api/stamp/add", map[string]string{
				"barSlug":    "demo",
				"customerId": "cust-1",
				"staffPin":   "1111",
			})

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Error)
		})
	}
}
