// Package tenantconfig собирает итоговую конфигурацию заведения из трёх слоёв:
// системных значений по умолчанию, устаревших плоских колонок и JSON-переопределения.
package tenantconfig

import "github.com/mmeshcher/stampcard/internal/model"

// Config описывает итоговую конфигурацию заведения.
type Config struct {
	Version      int                          `json:"version"`
	Theme        string                       `json:"theme,omitempty"`
	BusinessType string                       `json:"business_type,omitempty"`
	Branding     Branding                     `json:"branding"`
	SEO          SEO                          `json:"seo"`
	Features     Features                     `json:"features"`
	Stamps       Stamps                       `json:"stamps"`
	Rewards      Rewards                      `json:"rewards"`
	Wheel        Wheel                        `json:"wheel"`
	Texts        map[string]map[string]string `json:"texts"`
}

// Branding содержит название и оформление заведения.
type Branding struct {
	Name       string  `json:"name,omitempty"`
	LogoURL    *string `json:"logo_url,omitempty"`
	FaviconURL *string `json:"favicon_url,omitempty"`
	Theme      Theme   `json:"theme"`
}

// Theme содержит цвета темы.
type Theme struct {
	Background string `json:"background,omitempty"`
	Primary    string `json:"primary,omitempty"`
	Secondary  string `json:"secondary,omitempty"`
	Text       string `json:"text,omitempty"`
}

// SEO содержит метаданные страниц заведения.
type SEO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Features содержит флаги включения разделов.
type Features struct {
	Wheel  bool `json:"wheel"`
	Stamps bool `json:"stamps"`
	Wallet bool `json:"wallet"`
	Login  bool `json:"login"`
	Admin  bool `json:"admin"`
}

// Stamps содержит правила карты штампов.
type Stamps struct {
	Goal        int     `json:"goal"`
	DailyLimit  int     `json:"daily_limit"`
	RewardTitle *string `json:"reward_title,omitempty"`
}

// Rewards содержит правила наград.
type Rewards struct {
	ExpiresDays int `json:"expires_days"`
}

// Wheel содержит настройки колеса призов.
type Wheel struct {
	Enabled      bool                 `json:"enabled"`
	CooldownDays int                  `json:"cooldown_days"`
	Segments     []model.WheelSegment `json:"segments"`
	UI           WheelUI              `json:"ui"`
}

// WheelUI содержит параметры отображения колеса.
type WheelUI struct {
	SegmentColors []string `json:"segment_colors,omitempty"`
}

// DefaultStampRewardTitle используется, если название награды за штампы не задано.
const DefaultStampRewardTitle = "Premio por sellos"

// StampRewardTitle возвращает название награды за заполненную карту.
func (c Config) StampRewardTitle() string {
	if c.Stamps.RewardTitle != nil && *c.Stamps.RewardTitle != "" {
		return *c.Stamps.RewardTitle
	}
	return DefaultStampRewardTitle
}

// WheelActive сообщает, разрешено ли вращение колеса.
func (c Config) WheelActive() bool {
	return c.Wheel.Enabled && c.Features.Wheel
}

// APIText возвращает текст ответа API по ключу из раздела texts.api.
// Незаданный ключ берётся из конфигурации по умолчанию, неизвестный даёт пустую строку.
func (c Config) APIText(key string) string {
	if text := c.Texts["api"][key]; text != "" {
		return text
	}
	return defaultAPITexts[key]
}

var defaultAPITexts = Defaults().Texts["api"]

// Defaults возвращает полную и всегда валидную конфигурацию по умолчанию.
func Defaults() Config {
	one := 1
	return Config{
		Version: 1,
		Features: Features{
			Wheel:  true,
			Stamps: true,
			Wallet: true,
			Login:  true,
			Admin:  true,
		},
		Stamps: Stamps{
			Goal:       8,
			DailyLimit: 1,
		},
		Rewards: Rewards{
			ExpiresDays: 30,
		},
		Wheel: Wheel{
			Enabled:      true,
			CooldownDays: 7,
			Segments: []model.WheelSegment{
				{ID: "stamp_1", Label: "1 sello extra", Type: model.SegmentStamp, Value: &one, Weight: 3, Enabled: true},
				{ID: "none_1", Label: "Sigue jugando", Type: model.SegmentNone, Weight: 6, Enabled: true},
				{ID: "reward_1", Label: "5% dto próxima visita", Type: model.SegmentReward, Weight: 2, Enabled: true},
				{ID: "reward_2", Label: "Tapa gratis", Type: model.SegmentReward, Weight: 1, Enabled: true},
			},
		},
		Texts: map[string]map[string]string{
			"api": {
				"missing_params":      "Missing params",
				"bar_not_found":       "Bar not found",
				"wheel_disabled":      "Wheel disabled",
				"invalid_pin":         "Invalid PIN",
				"daily_limit_reached": "Daily limit reached",
				"reward_not_found":    "Reward not found",
				"reward_not_active":   "Reward not active",
				"reward_wrong_user":   "Reward does not belong to this user",
			},
		},
	}
}
