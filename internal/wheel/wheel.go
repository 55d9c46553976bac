// Package wheel реализует взвешенный случайный выбор сектора колеса призов.
package wheel

import (
	"crypto/rand"
	"math/big"

	"github.com/mmeshcher/stampcard/internal/model"
)

// RandomSource возвращает равномерно распределённое число из [0, n).
// *math/rand/v2.Rand удовлетворяет этому интерфейсу, что удобно в тестах.
type RandomSource interface {
	Int64N(n int64) int64
}

// CryptoSource берёт случайность из crypto/rand, непредсказуемую для клиента.
type CryptoSource struct{}

// Int64N возвращает случайное число из [0, n). Паникует при n <= 0, как math/rand.
func (CryptoSource) Int64N(n int64) int64 {
	if n <= 0 {
		panic("wheel: invalid argument to Int64N")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic("wheel: crypto/rand failure: " + err.Error())
	}
	return v.Int64()
}

// EffectKind описывает последствие выпавшего сектора.
type EffectKind string

const (
	// EffectNone означает только запись вращения, без изменения счётчика.
	EffectNone EffectKind = "none"
	// EffectStamp означает начисление штампов через леджер.
	EffectStamp EffectKind = "stamp"
	// EffectReward означает создание награды с источником wheel.
	EffectReward EffectKind = "reward"
)

// Effect описывает, что нужно сделать после вращения.
type Effect struct {
	Kind        EffectKind
	Stamps      int
	RewardTitle string
}

// Engine выбирает сектор колеса пропорционально весам.
type Engine struct {
	rnd RandomSource
}

// NewEngine создаёт движок колеса. При rnd == nil используется CryptoSource.
func NewEngine(rnd RandomSource) *Engine {
	if rnd == nil {
		rnd = CryptoSource{}
	}
	return &Engine{rnd: rnd}
}

// Spin выбирает включённый сектор с вероятностью weight/total и классифицирует эффект.
func (e *Engine) Spin(segments []model.WheelSegment) (model.WheelSegment, Effect, error) {
	enabled := make([]model.WheelSegment, 0, len(segments))
	var total int64
	for _, s := range segments {
		if !s.Enabled {
			continue
		}
		enabled = append(enabled, s)
		total += weight(s)
	}

	if total <= 0 {
		return model.WheelSegment{}, Effect{}, model.ErrNoEligibleSegments
	}

	chosen := pick(enabled, e.rnd.Int64N(total))
	return chosen, Classify(chosen), nil
}

// pick проходит секторы по порядку, вычитая вес из r; побеждает сектор,
// на котором r впервые стал отрицательным.
func pick(enabled []model.WheelSegment, r int64) model.WheelSegment {
	for _, s := range enabled {
		w := weight(s)
		if w == 0 {
			continue
		}
		r -= w
		if r < 0 {
			return s
		}
	}
	// Недостижимо при 0 <= r < total.
	return enabled[len(enabled)-1]
}

// weight приводит вес сектора к [0, model.MaxSegmentWeight], чтобы сумма не переполнялась.
func weight(s model.WheelSegment) int64 {
	return int64(min(max(0, s.Weight), model.MaxSegmentWeight))
}

// Classify определяет эффект сектора по его типу.
func Classify(s model.WheelSegment) Effect {
	switch s.Type {
	case model.SegmentStamp:
		amount := 1
		if s.Value != nil {
			amount = *s.Value
		}
		return Effect{Kind: EffectStamp, Stamps: max(0, amount)}
	case model.SegmentReward:
		return Effect{Kind: EffectReward, RewardTitle: s.Label}
	default:
		return Effect{Kind: EffectNone}
	}
}
