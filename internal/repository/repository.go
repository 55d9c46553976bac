// Package repository содержит реализации хранилища данных программы лояльности:
// PostgreSQL для продакшена и in-memory для локального запуска и тестов.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/stampcard/internal/model"
)

// LedgerTx описывает единицу работы над членством, журналом штампов, наградами и вращениями.
// Все вызовы внутри одной транзакции либо фиксируются вместе, либо откатываются.
type LedgerTx interface {
	// LockMembership создаёт членство с нулевым счётчиком при отсутствии,
	// блокирует его до конца транзакции и возвращает текущий счётчик.
	LockMembership(ctx context.Context, tenantID uuid.UUID, customerID string) (int, error)
	// CountStampEventsSince считает события указанных видов начиная с момента since.
	CountStampEventsSince(ctx context.Context, tenantID uuid.UUID, customerID string, kinds []model.StampEventKind, since time.Time) (int, error)
	AppendStampEvent(ctx context.Context, e *model.StampEvent) error
	// IncrementStamps атомарно увеличивает счётчик и возвращает новое значение.
	IncrementStamps(ctx context.Context, tenantID uuid.UUID, customerID string, amount int, at time.Time) (int, error)
	ResetStamps(ctx context.Context, tenantID uuid.UUID, customerID string, at time.Time) error
	CreateReward(ctx context.Context, r *model.Reward) error
	AppendWheelSpin(ctx context.Context, s *model.WheelSpin) error
}

// TxFunc содержит тело транзакции.
type TxFunc func(ctx context.Context, tx LedgerTx) error

var _ LedgerTx = (*pgLedgerTx)(nil)
var _ LedgerTx = (*memoryTx)(nil)
