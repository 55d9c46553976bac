package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/stampcard/internal/tenantconfig"
)

type businessResponse struct {
	ID      string  `json:"id"`
	Slug    string  `json:"slug"`
	Name    string  `json:"name"`
	LogoURL *string `json:"logo_url,omitempty"`
}

type configResponse struct {
	Business businessResponse    `json:"business"`
	Config   tenantconfig.Config `json:"config"`
	Issues   []string            `json:"issues"`
}

func newConfigResponse(res *tenantconfig.Resolved, withLogo bool) configResponse {
	resp := configResponse{
		Business: businessResponse{
			ID:   res.Tenant.ID.String(),
			Slug: res.Tenant.Slug,
			Name: res.Tenant.Name,
		},
		Config: res.Config,
		Issues: res.Issues,
	}
	if withLogo {
		resp.Business.LogoURL = res.Tenant.LogoURL
	}
	if resp.Issues == nil {
		resp.Issues = []string{}
	}
	return resp
}

// GetBusinessConfig отдаёт публичную конфигурацию заведения.
func (h *Handler) GetBusinessConfig(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.GetBusinessConfig(r.Context(), slug)
	if err != nil {
		h.writeError(w, "get business config", err, zap.String("slug", slug))
		return
	}

	if len(res.Issues) > 0 {
		h.logger.Warn("tenant config has issues", zap.String("slug", slug), zap.Strings("issues", res.Issues))
	}

	writeJSON(w, http.StatusOK, newConfigResponse(res, true))
}

type adminConfigRequest struct {
	BarSlug string          `json:"barSlug"`
	Config  json.RawMessage `json:"config"`
	staffPin
}

// GetAdminConfig отдаёт конфигурацию заведения администратору.
func (h *Handler) GetAdminConfig(w http.ResponseWriter, r *http.Request) {
	var req adminConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.BarSlug == "" || req.value() == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.GetAdminConfig(r.Context(), req.BarSlug, req.value())
	if err != nil {
		h.writeError(w, "get admin config", err, zap.String("slug", req.BarSlug))
		return
	}

	writeJSON(w, http.StatusOK, newConfigResponse(res, false))
}

// UpdateConfig сохраняет конфигурацию заведения после строгой проверки.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req adminConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.BarSlug == "" || req.value() == "" || len(req.Config) == 0 || string(req.Config) == "null" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if _, err := h.service.UpdateConfig(r.Context(), req.BarSlug, req.value(), req.Config); err != nil {
		h.writeError(w, "update config", err, zap.String("slug", req.BarSlug))
		return
	}

	h.logger.Info("tenant config updated", zap.String("slug", req.BarSlug))
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type stampQRRequest struct {
	BarSlug string `json:"barSlug"`
	staffPin
}

type stampQRResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// IssueStampQR выпускает QR-токен для самостоятельного начисления штампов.
// С параметром format=png возвращает изображение QR-кода.
func (h *Handler) IssueStampQR(w http.ResponseWriter, r *http.Request) {
	var req stampQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.BarSlug == "" || req.value() == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 2048 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		size = n
	}

	qr, err := h.service.IssueStampQR(r.Context(), req.BarSlug, req.value())
	if err != nil {
		h.writeError(w, "issue stamp qr", err, zap.String("slug", req.BarSlug))
		return
	}

	if r.URL.Query().Get("format") != "png" {
		writeJSON(w, http.StatusOK, stampQRResponse{Token: qr.Token, URL: qr.ClaimURL})
		return
	}

	png, err := qr.PNG(size)
	if err != nil {
		h.writeError(w, "render stamp qr", err, zap.String("slug", req.BarSlug))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
