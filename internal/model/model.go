// Package model содержит доменные сущности программы лояльности со штампами.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant представляет заведение (бизнес), подключённое к программе лояльности.
type Tenant struct {
	ID      uuid.UUID
	Slug    string
	Name    string
	LogoURL *string

	// Устаревшие плоские колонки, из которых собирается второй слой конфигурации.
	StampGoal         *int
	StampDailyLimit   *int
	RewardTitle       *string
	RewardExpiresDays *int
	WheelEnabled      *bool
	WheelCooldownDays *int

	// Config хранит JSON-переопределение конфигурации заведения.
	Config json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership описывает прогресс клиента по штампам в конкретном заведении.
type Membership struct {
	TenantID    uuid.UUID
	CustomerID  string
	StampsCount int
	UpdatedAt   time.Time
}

// RewardSource описывает происхождение награды.
type RewardSource string

const (
	RewardSourceStamps RewardSource = "stamps"
	RewardSourceWheel  RewardSource = "wheel"
)

// RewardStatus описывает состояние награды.
type RewardStatus string

const (
	RewardStatusActive   RewardStatus = "active"
	RewardStatusRedeemed RewardStatus = "redeemed"
)

// Reward описывает заработанный клиентом приз.
type Reward struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CustomerID string
	Source     RewardSource
	Title      string
	Status     RewardStatus
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RedeemedAt *time.Time
}

// Expired сообщает, истёк ли срок действия награды на момент now.
func (r Reward) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// StampEventKind описывает канал, через который был добавлен штамп.
type StampEventKind string

const (
	StampEventStaff StampEventKind = "staff"
	StampEventQR    StampEventKind = "qr"
	StampEventWheel StampEventKind = "wheel"
)

// CountsTowardDailyLimit сообщает, учитывается ли событие в дневном лимите.
func (k StampEventKind) CountsTowardDailyLimit() bool {
	return k == StampEventStaff || k == StampEventQR
}

// StampEvent описывает запись аудита о добавлении штампов. StaffID равен nil для самообслуживания по QR.
type StampEvent struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CustomerID string
	StaffID    *uuid.UUID
	Kind       StampEventKind
	Amount     int
	CreatedAt  time.Time
}

// WheelSpin описывает запись аудита об одном вращении колеса.
type WheelSpin struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	CustomerID   string
	SegmentID    string
	SegmentLabel string
	SegmentType  SegmentType
	RewardID     *uuid.UUID
	CreatedAt    time.Time
}

// StaffRole описывает роль сотрудника заведения.
type StaffRole string

const (
	RoleStaff   StaffRole = "staff"
	RoleManager StaffRole = "manager"
	RoleAdmin   StaffRole = "admin"
)

// AnyStaffRole перечисляет роли, которым разрешены операции со штампами и наградами.
var AnyStaffRole = []StaffRole{RoleStaff, RoleManager, RoleAdmin}

// ConfigEditorRoles перечисляет роли, которым разрешено менять конфигурацию заведения.
var ConfigEditorRoles = []StaffRole{RoleAdmin, RoleManager}

// StaffUser описывает сотрудника заведения с PIN-кодом.
type StaffUser struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	PinHash  string
	Role     StaffRole
}

// SegmentType описывает эффект сектора колеса призов.
type SegmentType string

const (
	SegmentNone   SegmentType = "none"
	SegmentStamp  SegmentType = "stamp"
	SegmentReward SegmentType = "reward"
)

// Valid сообщает, входит ли тип в перечисление допустимых.
func (t SegmentType) Valid() bool {
	switch t {
	case SegmentNone, SegmentStamp, SegmentReward:
		return true
	}
	return false
}

// MaxSegmentWeight ограничивает вес сектора колеса сверху.
const MaxSegmentWeight = 1_000_000

// WheelSegment описывает один сектор колеса призов из конфигурации заведения.
type WheelSegment struct {
	ID      string      `json:"id"`
	Label   string      `json:"label"`
	Type    SegmentType `json:"type"`
	Value   *int        `json:"value,omitempty"`
	Weight  int         `json:"weight"`
	Enabled bool        `json:"enabled"`
}
