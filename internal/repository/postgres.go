package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/stampcard/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// InTx выполняет fn в одной транзакции. Любая ошибка fn откатывает все изменения.
func (r *PostgresRepository) InTx(ctx context.Context, fn TxFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const tenantColumns = `id, slug, name, logo_url, stamp_goal, stamp_daily_limit, reward_title,
	reward_expires_days, wheel_enabled, wheel_cooldown_days, config, created_at, updated_at`

// GetTenantBySlug возвращает заведение по slug.
func (r *PostgresRepository) GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`,
		slug,
	)

	var t model.Tenant
	var cfg []byte
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.LogoURL,
		&t.StampGoal, &t.StampDailyLimit, &t.RewardTitle,
		&t.RewardExpiresDays, &t.WheelEnabled, &t.WheelCooldownDays,
		&cfg, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	t.Config = cfg

	return &t, nil
}

// UpdateTenantConfig сохраняет JSON-переопределение конфигурации заведения.
func (r *PostgresRepository) UpdateTenantConfig(ctx context.Context, tenantID uuid.UUID, raw []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET config = $2, updated_at = now() WHERE id = $1`,
		tenantID, raw,
	)
	if err != nil {
		return fmt.Errorf("update tenant config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTenantNotFound
	}
	return nil
}

// GetStaffByPinHash ищет сотрудника заведения по хешу PIN.
func (r *PostgresRepository) GetStaffByPinHash(ctx context.Context, tenantID uuid.UUID, pinHash string) (*model.StaffUser, error) {
	var s model.StaffUser
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, pin_hash, role FROM staff_users WHERE tenant_id = $1 AND pin_hash = $2`,
		tenantID, pinHash,
	).Scan(&s.ID, &s.TenantID, &s.PinHash, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrStaffNotFound
		}
		return nil, fmt.Errorf("get staff: %w", err)
	}
	s.Role = model.StaffRole(role)
	return &s, nil
}

const rewardColumns = `id, tenant_id, customer_id, source, title, status, expires_at, created_at, redeemed_at`

func scanReward(row pgx.Row) (model.Reward, error) {
	var (
		rw     model.Reward
		source string
		status string
	)
	err := row.Scan(
		&rw.ID, &rw.TenantID, &rw.CustomerID, &source, &rw.Title,
		&status, &rw.ExpiresAt, &rw.CreatedAt, &rw.RedeemedAt,
	)
	rw.Source = model.RewardSource(source)
	rw.Status = model.RewardStatus(status)
	return rw, err
}

// GetReward возвращает награду заведения по идентификатору.
func (r *PostgresRepository) GetReward(ctx context.Context, tenantID, rewardID uuid.UUID) (*model.Reward, error) {
	rw, err := scanReward(r.pool.QueryRow(ctx,
		`SELECT `+rewardColumns+` FROM rewards WHERE tenant_id = $1 AND id = $2`,
		tenantID, rewardID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRewardNotFound
		}
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return &rw, nil
}

// MarkRewardRedeemed переводит активную награду в статус redeemed.
// Возвращает false, если награда уже не активна: из двух параллельных погашений
// успешно только одно.
func (r *PostgresRepository) MarkRewardRedeemed(ctx context.Context, tenantID, rewardID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE rewards SET status = $3, redeemed_at = $4
		 WHERE tenant_id = $1 AND id = $2 AND status = $5`,
		tenantID, rewardID, string(model.RewardStatusRedeemed), at, string(model.RewardStatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("redeem reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetStampsCount возвращает текущий счётчик штампов клиента или 0, если членства нет.
func (r *PostgresRepository) GetStampsCount(ctx context.Context, tenantID uuid.UUID, customerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT stamps_count FROM memberships WHERE tenant_id = $1 AND customer_id = $2`,
		tenantID, customerID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get stamps count: %w", err)
	}
	return count, nil
}

// ListRewards возвращает награды клиента с указанным статусом.
// Активные упорядочены по сроку действия, погашенные от новых к старым.
func (r *PostgresRepository) ListRewards(ctx context.Context, tenantID uuid.UUID, customerID string, status model.RewardStatus) ([]model.Reward, error) {
	order := `expires_at ASC`
	if status == model.RewardStatusRedeemed {
		order = `created_at DESC`
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+rewardColumns+`
		 FROM rewards
		 WHERE tenant_id = $1 AND customer_id = $2 AND status = $3
		 ORDER BY `+order,
		tenantID, customerID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select rewards: %w", err)
	}
	defer rows.Close()

	var res []model.Reward
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		res = append(res, rw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

type pgLedgerTx struct {
	tx pgx.Tx
}

func (t *pgLedgerTx) LockMembership(ctx context.Context, tenantID uuid.UUID, customerID string) (int, error) {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO memberships (tenant_id, customer_id, stamps_count)
		 VALUES ($1, $2, 0)
		 ON CONFLICT (tenant_id, customer_id) DO NOTHING`,
		tenantID, customerID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, model.ErrTenantNotFound
		}
		return 0, fmt.Errorf("ensure membership: %w", err)
	}

	// Блокируем строку членства, чтобы параллельные начисления выполнялись по очереди.
	var count int
	err = t.tx.QueryRow(ctx,
		`SELECT stamps_count FROM memberships WHERE tenant_id = $1 AND customer_id = $2 FOR UPDATE`,
		tenantID, customerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("lock membership for update: %w", err)
	}
	return count, nil
}

func (t *pgLedgerTx) CountStampEventsSince(ctx context.Context, tenantID uuid.UUID, customerID string, kinds []model.StampEventKind, since time.Time) (int, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT count(*)
		 FROM stamp_events
		 WHERE tenant_id = $1 AND customer_id = $2 AND kind = ANY($3) AND created_at >= $4`,
		tenantID, customerID, names, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count stamp events: %w", err)
	}
	return n, nil
}

func (t *pgLedgerTx) AppendStampEvent(ctx context.Context, e *model.StampEvent) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO stamp_events (id, tenant_id, customer_id, staff_id, kind, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TenantID, e.CustomerID, e.StaffID, string(e.Kind), e.Amount, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stamp event: %w", err)
	}
	return nil
}

func (t *pgLedgerTx) IncrementStamps(ctx context.Context, tenantID uuid.UUID, customerID string, amount int, at time.Time) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx,
		`UPDATE memberships SET stamps_count = stamps_count + $3, updated_at = $4
		 WHERE tenant_id = $1 AND customer_id = $2
		 RETURNING stamps_count`,
		tenantID, customerID, amount, at,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment stamps: %w", err)
	}
	return count, nil
}

func (t *pgLedgerTx) ResetStamps(ctx context.Context, tenantID uuid.UUID, customerID string, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE memberships SET stamps_count = 0, updated_at = $3 WHERE tenant_id = $1 AND customer_id = $2`,
		tenantID, customerID, at,
	)
	if err != nil {
		return fmt.Errorf("reset stamps: %w", err)
	}
	return nil
}

func (t *pgLedgerTx) CreateReward(ctx context.Context, rw *model.Reward) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO rewards (id, tenant_id, customer_id, source, title, status, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rw.ID, rw.TenantID, rw.CustomerID, string(rw.Source), rw.Title,
		string(rw.Status), rw.ExpiresAt, rw.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

func (t *pgLedgerTx) AppendWheelSpin(ctx context.Context, s *model.WheelSpin) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO wheel_spins (id, tenant_id, customer_id, segment_id, segment_label, segment_type, reward_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.TenantID, s.CustomerID, s.SegmentID, s.SegmentLabel,
		string(s.SegmentType), s.RewardID, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wheel spin: %w", err)
	}
	return nil
}
