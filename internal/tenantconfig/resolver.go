package tenantconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/stampcard/internal/model"
)

// DefaultTTL задаёт время жизни записи кэша. Правка конфигурации оператором становится
// видна всем процессам не позже чем через DefaultTTL даже без явной инвалидации.
const DefaultTTL = 10 * time.Second

// TenantSource загружает заведение по slug.
type TenantSource interface {
	GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)
}

// Resolved содержит заведение вместе с итоговой конфигурацией и найденными проблемами.
type Resolved struct {
	Tenant *model.Tenant
	Config Config
	Issues []string
}

// Resolve собирает конфигурацию заведения. Функция чистая и никогда не падает:
// при невалидном результате возвращается слитая конфигурация и список проблем.
func Resolve(t *model.Tenant) (Config, []string) {
	override, parseIssues := ParseOverride(t.Config)

	cfg := Build(
		LegacyLayer(t),
		Layer{Name: LayerTenant, Override: override},
	)

	issues := append(parseIssues, Validate(cfg)...)
	if len(issues) == 0 {
		return cfg, nil
	}
	return cfg, issues
}

// ValidateOverride строго проверяет конфигурацию, присланную администратором:
// неизвестные поля и нарушения диапазонов отклоняются. При успехе возвращает
// нормализованную конфигурацию (значения по умолчанию + присланное).
func ValidateOverride(raw []byte) (Config, []string) {
	var o Override
	if err := decodeOverride(raw, &o, true); err != nil {
		return Config{}, []string{fmt.Sprintf("(root): %v", err)}
	}

	cfg := Build(Layer{Name: LayerTenant, Override: o})
	if issues := Validate(cfg); len(issues) > 0 {
		return Config{}, issues
	}
	return cfg, nil
}

// Marshal сериализует конфигурацию для хранения в колонке заведения.
func Marshal(c Config) ([]byte, error) {
	return json.Marshal(c)
}

type cacheEntry struct {
	resolved  *Resolved
	expiresAt time.Time
}

// Resolver кэширует результаты Resolve по slug на TTL.
// Invalidate удаляет запись сразу, не дожидаясь истечения TTL.
type Resolver struct {
	source TenantSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewResolver создаёт кэширующий резолвер. ttl <= 0 заменяется на DefaultTTL.
func NewResolver(source TenantSource, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Resolve возвращает конфигурацию заведения. Ошибка возможна только при
// отсутствии заведения (model.ErrTenantNotFound) или сбое хранилища.
// Отсутствующие заведения и ошибки не кэшируются.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Resolved, error) {
	if res, ok := r.cached(slug); ok {
		return res, nil
	}

	v, err, _ := r.group.Do(slug, func() (any, error) {
		if res, ok := r.cached(slug); ok {
			return res, nil
		}

		// Загрузку ждут все конкурентные вызовы, поэтому отмена первого из них её не прерывает.
		t, err := r.source.GetTenantBySlug(context.WithoutCancel(ctx), slug)
		if err != nil {
			if errors.Is(err, model.ErrTenantNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load tenant %q: %w", slug, err)
		}

		cfg, issues := Resolve(t)
		res := &Resolved{Tenant: t, Config: cfg, Issues: issues}

		r.mu.Lock()
		r.entries[slug] = cacheEntry{resolved: res, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()

		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resolved), nil
}

// Invalidate удаляет запись заведения из кэша.
func (r *Resolver) Invalidate(slug string) {
	r.mu.Lock()
	delete(r.entries, slug)
	r.mu.Unlock()
	r.group.Forget(slug)
}

func (r *Resolver) cached(slug string) (*Resolved, bool) {
	r.mu.RLock()
	e, ok := r.entries[slug]
	r.mu.RUnlock()
	if !ok || !r.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.resolved, true
}
