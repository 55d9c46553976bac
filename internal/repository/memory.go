package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/stampcard/internal/model"
)

type membershipKey struct {
	tenantID   uuid.UUID
	customerID string
}

// MemoryRepository хранит данные в памяти процесса. Транзакции выполняются
// строго последовательно, изменения применяются только при успешном завершении.
type MemoryRepository struct {
	mu sync.RWMutex

	tenants     map[uuid.UUID]*model.Tenant
	slugs       map[string]uuid.UUID
	staff       []model.StaffUser
	memberships map[membershipKey]model.Membership
	events      []model.StampEvent
	rewards     map[uuid.UUID]*model.Reward
	spins       []model.WheelSpin
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants:     make(map[uuid.UUID]*model.Tenant),
		slugs:       make(map[string]uuid.UUID),
		memberships: make(map[membershipKey]model.Membership),
		rewards:     make(map[uuid.UUID]*model.Reward),
	}
}

// SeedTenant добавляет заведение. Пустой ID заменяется сгенерированным.
func (r *MemoryRepository) SeedTenant(t model.Tenant) *model.Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
		t.UpdatedAt = t.CreatedAt
	}
	r.tenants[t.ID] = &t
	r.slugs[t.Slug] = t.ID

	out := t
	return &out
}

// SeedStaff добавляет сотрудника заведения.
func (r *MemoryRepository) SeedStaff(s model.StaffUser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.staff = append(r.staff, s)
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error { return nil }

// InTx выполняет fn под эксклюзивной блокировкой хранилища.
func (r *MemoryRepository) InTx(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{
		repo:        r,
		memberships: make(map[membershipKey]model.Membership),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *MemoryRepository) GetTenantBySlug(_ context.Context, slug string) (*model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.slugs[slug]
	if !ok {
		return nil, model.ErrTenantNotFound
	}
	t := *r.tenants[id]
	t.Config = slices.Clone(t.Config)
	return &t, nil
}

func (r *MemoryRepository) UpdateTenantConfig(_ context.Context, tenantID uuid.UUID, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[tenantID]
	if !ok {
		return model.ErrTenantNotFound
	}
	t.Config = slices.Clone(raw)
	t.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) GetStaffByPinHash(_ context.Context, tenantID uuid.UUID, pinHash string) (*model.StaffUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.staff {
		if s.TenantID == tenantID && s.PinHash == pinHash {
			out := s
			return &out, nil
		}
	}
	return nil, model.ErrStaffNotFound
}

func (r *MemoryRepository) GetReward(_ context.Context, tenantID, rewardID uuid.UUID) (*model.Reward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rw, ok := r.rewards[rewardID]
	if !ok || rw.TenantID != tenantID {
		return nil, model.ErrRewardNotFound
	}
	out := *rw
	return &out, nil
}

func (r *MemoryRepository) MarkRewardRedeemed(_ context.Context, tenantID, rewardID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rw, ok := r.rewards[rewardID]
	if !ok || rw.TenantID != tenantID || rw.Status != model.RewardStatusActive {
		return false, nil
	}
	rw.Status = model.RewardStatusRedeemed
	rw.RedeemedAt = &at
	return true, nil
}

func (r *MemoryRepository) GetStampsCount(_ context.Context, tenantID uuid.UUID, customerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.memberships[membershipKey{tenantID, customerID}].StampsCount, nil
}

func (r *MemoryRepository) ListRewards(_ context.Context, tenantID uuid.UUID, customerID string, status model.RewardStatus) ([]model.Reward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Reward
	for _, rw := range r.rewards {
		if rw.TenantID == tenantID && rw.CustomerID == customerID && rw.Status == status {
			res = append(res, *rw)
		}
	}

	if status == model.RewardStatusRedeemed {
		slices.SortFunc(res, func(a, b model.Reward) int { return b.CreatedAt.Compare(a.CreatedAt) })
	} else {
		slices.SortFunc(res, func(a, b model.Reward) int {
			return cmp.Or(a.ExpiresAt.Compare(b.ExpiresAt), a.CreatedAt.Compare(b.CreatedAt))
		})
	}
	return res, nil
}

// Events возвращает копию журнала штампов.
func (r *MemoryRepository) Events() []model.StampEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}

// Spins возвращает копию журнала вращений колеса.
func (r *MemoryRepository) Spins() []model.WheelSpin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.spins)
}

// memoryTx накапливает изменения и применяет их в commit.
// Вызывается только под r.mu.
type memoryTx struct {
	repo *MemoryRepository

	memberships map[membershipKey]model.Membership
	events      []model.StampEvent
	rewards     []model.Reward
	spins       []model.WheelSpin
}

func (t *memoryTx) membership(tenantID uuid.UUID, customerID string) (model.Membership, bool) {
	k := membershipKey{tenantID, customerID}
	if m, ok := t.memberships[k]; ok {
		return m, true
	}
	m, ok := t.repo.memberships[k]
	return m, ok
}

func (t *memoryTx) LockMembership(_ context.Context, tenantID uuid.UUID, customerID string) (int, error) {
	if _, ok := t.repo.tenants[tenantID]; !ok {
		return 0, model.ErrTenantNotFound
	}
	m, ok := t.membership(tenantID, customerID)
	if !ok {
		m = model.Membership{TenantID: tenantID, CustomerID: customerID, UpdatedAt: time.Now()}
		t.memberships[membershipKey{tenantID, customerID}] = m
	}
	return m.StampsCount, nil
}

func (t *memoryTx) CountStampEventsSince(_ context.Context, tenantID uuid.UUID, customerID string, kinds []model.StampEventKind, since time.Time) (int, error) {
	n := 0
	count := func(events []model.StampEvent) {
		for _, e := range events {
			if e.TenantID == tenantID && e.CustomerID == customerID &&
				!e.CreatedAt.Before(since) && slices.Contains(kinds, e.Kind) {
				n++
			}
		}
	}
	count(t.repo.events)
	count(t.events)
	return n, nil
}

func (t *memoryTx) AppendStampEvent(_ context.Context, e *model.StampEvent) error {
	t.events = append(t.events, *e)
	return nil
}

func (t *memoryTx) IncrementStamps(_ context.Context, tenantID uuid.UUID, customerID string, amount int, at time.Time) (int, error) {
	m, ok := t.membership(tenantID, customerID)
	if !ok {
		return 0, fmt.Errorf("increment stamps: membership %s/%s is not locked", tenantID, customerID)
	}
	m.StampsCount += amount
	m.UpdatedAt = at
	t.memberships[membershipKey{tenantID, customerID}] = m
	return m.StampsCount, nil
}

func (t *memoryTx) ResetStamps(_ context.Context, tenantID uuid.UUID, customerID string, at time.Time) error {
	m, ok := t.membership(tenantID, customerID)
	if !ok {
		return fmt.Errorf("reset stamps: membership %s/%s is not locked", tenantID, customerID)
	}
	m.StampsCount = 0
	m.UpdatedAt = at
	t.memberships[membershipKey{tenantID, customerID}] = m
	return nil
}

func (t *memoryTx) CreateReward(_ context.Context, rw *model.Reward) error {
	t.rewards = append(t.rewards, *rw)
	return nil
}

func (t *memoryTx) AppendWheelSpin(_ context.Context, s *model.WheelSpin) error {
	t.spins = append(t.spins, *s)
	return nil
}

func (t *memoryTx) commit() {
	r := t.repo
	for k, m := range t.memberships {
		r.memberships[k] = m
	}
	r.events = append(r.events, t.events...)
	for i := range t.rewards {
		rw := t.rewards[i]
		r.rewards[rw.ID] = &rw
	}
	r.spins = append(r.spins, t.spins...)
}
