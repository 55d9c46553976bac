package model

import (
	"errors"
	"fmt"
)

// Классы ошибок. Конкретные ошибки ниже оборачивают один из классов,
// поэтому errors.Is срабатывает и на конкретную ошибку, и на её класс.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("auth error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrRateLimit  = errors.New("rate limit exceeded")
)

var (
	// ErrInvalidToken возвращается для повреждённого, поддельного или просроченного токена.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrAuth)
	// ErrUnauthorized возвращается, если PIN не принадлежит ни одному сотруднику заведения.
	ErrUnauthorized = fmt.Errorf("%w: invalid pin", ErrAuth)
	// ErrForbidden возвращается, если роли сотрудника недостаточно для операции.
	ErrForbidden = fmt.Errorf("%w: forbidden", ErrAuth)
	// ErrWrongOwner возвращается, если награда принадлежит другому клиенту.
	ErrWrongOwner = fmt.Errorf("%w: reward does not belong to this customer", ErrAuth)
	// ErrWheelDisabled возвращается, если колесо призов выключено в конфигурации.
	ErrWheelDisabled = fmt.Errorf("%w: wheel disabled", ErrAuth)

	// ErrTenantNotFound возвращается, если заведение не найдено.
	ErrTenantNotFound = fmt.Errorf("%w: tenant", ErrNotFound)
	// ErrRewardNotFound возвращается, если награда не найдена в рамках заведения.
	ErrRewardNotFound = fmt.Errorf("%w: reward", ErrNotFound)
	// ErrStaffNotFound возвращается хранилищем, если сотрудник с таким хешем PIN не найден.
	ErrStaffNotFound = fmt.Errorf("%w: staff", ErrNotFound)

	// ErrRewardNotActive возвращается при попытке погасить уже погашенную награду.
	ErrRewardNotActive = fmt.Errorf("%w: reward not active", ErrConflict)
	// ErrNoEligibleSegments возвращается, если на колесе нет включённых секторов с положительным весом.
	ErrNoEligibleSegments = fmt.Errorf("%w: no eligible wheel segments", ErrConflict)

	// ErrDailyLimitReached возвращается при превышении дневного лимита штампов.
	ErrDailyLimitReached = fmt.Errorf("%w: daily stamp limit reached", ErrRateLimit)
)

// InvalidConfigError возвращается при сохранении конфигурации, не прошедшей строгую проверку.
// Issues содержит проблемы в формате "path: message".
type InvalidConfigError struct {
	Issues []string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d issue(s)", len(e.Issues))
}

// Unwrap относит ошибку к классу ErrValidation.
func (e *InvalidConfigError) Unwrap() error {
	return ErrValidation
}
