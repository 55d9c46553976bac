package tenantconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/mmeshcher/stampcard/internal/model"
)

// Имена слоёв поверх значений по умолчанию в порядке возрастания приоритета.
const (
	LayerLegacy = "legacy"
	LayerTenant = "tenant"
)

// Override описывает частичную конфигурацию одного слоя. nil-поле означает «не задано».
// Объекты сливаются рекурсивно по ключам, массивы заменяются целиком.
type Override struct {
	Version      *int                         `json:"version,omitempty"`
	Theme        *string                      `json:"theme,omitempty"`
	BusinessType *string                      `json:"business_type,omitempty"`
	Branding     *BrandingOverride            `json:"branding,omitempty"`
	SEO          *SEOOverride                 `json:"seo,omitempty"`
	Features     *FeaturesOverride            `json:"features,omitempty"`
	Stamps       *StampsOverride              `json:"stamps,omitempty"`
	Rewards      *RewardsOverride             `json:"rewards,omitempty"`
	Wheel        *WheelOverride               `json:"wheel,omitempty"`
	Texts        map[string]map[string]string `json:"texts,omitempty"`
}

// BrandingOverride описывает частичные настройки оформления.
type BrandingOverride struct {
	Name       *string        `json:"name,omitempty"`
	LogoURL    *string        `json:"logo_url,omitempty"`
	FaviconURL *string        `json:"favicon_url,omitempty"`
	Theme      *ThemeOverride `json:"theme,omitempty"`
}

// ThemeOverride описывает частичные цвета темы.
type ThemeOverride struct {
	Background *string `json:"background,omitempty"`
	Primary    *string `json:"primary,omitempty"`
	Secondary  *string `json:"secondary,omitempty"`
	Text       *string `json:"text,omitempty"`
}

// SEOOverride описывает частичные SEO-метаданные.
type SEOOverride struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// FeaturesOverride описывает частичные флаги разделов.
type FeaturesOverride struct {
	Wheel  *bool `json:"wheel,omitempty"`
	Stamps *bool `json:"stamps,omitempty"`
	Wallet *bool `json:"wallet,omitempty"`
	Login  *bool `json:"login,omitempty"`
	Admin  *bool `json:"admin,omitempty"`
}

// StampsOverride описывает частичные правила штампов.
type StampsOverride struct {
	Goal        *int    `json:"goal,omitempty"`
	DailyLimit  *int    `json:"daily_limit,omitempty"`
	RewardTitle *string `json:"reward_title,omitempty"`
}

// RewardsOverride описывает частичные правила наград.
type RewardsOverride struct {
	ExpiresDays *int `json:"expires_days,omitempty"`
}

// WheelOverride описывает частичные настройки колеса. Segments заменяет список целиком.
type WheelOverride struct {
	Enabled      *bool              `json:"enabled,omitempty"`
	CooldownDays *int               `json:"cooldown_days,omitempty"`
	Segments     *[]SegmentOverride `json:"segments,omitempty"`
	UI           *WheelUIOverride   `json:"ui,omitempty"`
}

// WheelUIOverride описывает частичные параметры отображения колеса. SegmentColors заменяет список целиком.
type WheelUIOverride struct {
	SegmentColors *[]string `json:"segment_colors,omitempty"`
}

// SegmentOverride описывает сектор колеса из JSON. Незаданные поля получают значения
// по умолчанию: enabled=true, type=none, weight=1.
type SegmentOverride struct {
	ID      *string            `json:"id,omitempty"`
	Label   *string            `json:"label,omitempty"`
	Type    *model.SegmentType `json:"type,omitempty"`
	Value   *int               `json:"value,omitempty"`
	Weight  *int               `json:"weight,omitempty"`
	Enabled *bool              `json:"enabled,omitempty"`
}

// Layer описывает именованный слой конфигурации.
type Layer struct {
	Name     string
	Override Override
}

// Build накладывает слои поверх значений по умолчанию в порядке передачи.
func Build(layers ...Layer) Config {
	cfg := Defaults()
	for _, l := range layers {
		l.Override.applyTo(&cfg)
	}
	return cfg
}

func (o Override) applyTo(c *Config) {
	setIfPresent(&c.Version, o.Version)
	setIfPresent(&c.Theme, o.Theme)
	setIfPresent(&c.BusinessType, o.BusinessType)

	if b := o.Branding; b != nil {
		setIfPresent(&c.Branding.Name, b.Name)
		if b.LogoURL != nil {
			c.Branding.LogoURL = b.LogoURL
		}
		if b.FaviconURL != nil {
			c.Branding.FaviconURL = b.FaviconURL
		}
		if t := b.Theme; t != nil {
			setIfPresent(&c.Branding.Theme.Background, t.Background)
			setIfPresent(&c.Branding.Theme.Primary, t.Primary)
			setIfPresent(&c.Branding.Theme.Secondary, t.Secondary)
			setIfPresent(&c.Branding.Theme.Text, t.Text)
		}
	}

	if s := o.SEO; s != nil {
		setIfPresent(&c.SEO.Title, s.Title)
		setIfPresent(&c.SEO.Description, s.Description)
	}

	if f := o.Features; f != nil {
		setIfPresent(&c.Features.Wheel, f.Wheel)
		setIfPresent(&c.Features.Stamps, f.Stamps)
		setIfPresent(&c.Features.Wallet, f.Wallet)
		setIfPresent(&c.Features.Login, f.Login)
		setIfPresent(&c.Features.Admin, f.Admin)
	}

	if s := o.Stamps; s != nil {
		setIfPresent(&c.Stamps.Goal, s.Goal)
		setIfPresent(&c.Stamps.DailyLimit, s.DailyLimit)
		if s.RewardTitle != nil {
			c.Stamps.RewardTitle = s.RewardTitle
		}
	}

	if r := o.Rewards; r != nil {
		setIfPresent(&c.Rewards.ExpiresDays, r.ExpiresDays)
	}

	if w := o.Wheel; w != nil {
		setIfPresent(&c.Wheel.Enabled, w.Enabled)
		setIfPresent(&c.Wheel.CooldownDays, w.CooldownDays)
		if w.Segments != nil {
			c.Wheel.Segments = segmentsFromOverride(*w.Segments)
		}
		if w.UI != nil && w.UI.SegmentColors != nil {
			c.Wheel.UI.SegmentColors = append([]string(nil), (*w.UI.SegmentColors)...)
		}
	}

	for section, entries := range o.Texts {
		if c.Texts == nil {
			c.Texts = make(map[string]map[string]string)
		}
		merged := make(map[string]string, len(c.Texts[section])+len(entries))
		maps.Copy(merged, c.Texts[section])
		maps.Copy(merged, entries)
		c.Texts[section] = merged
	}
}

func setIfPresent[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func segmentsFromOverride(in []SegmentOverride) []model.WheelSegment {
	out := make([]model.WheelSegment, 0, len(in))
	for _, s := range in {
		seg := model.WheelSegment{
			Type:    model.SegmentNone,
			Weight:  1,
			Enabled: true,
			Value:   s.Value,
		}
		setIfPresent(&seg.ID, s.ID)
		setIfPresent(&seg.Label, s.Label)
		setIfPresent(&seg.Type, s.Type)
		setIfPresent(&seg.Weight, s.Weight)
		setIfPresent(&seg.Enabled, s.Enabled)
		out = append(out, seg)
	}
	return out
}

// LegacyLayer строит слой из устаревших плоских колонок заведения.
func LegacyLayer(t *model.Tenant) Layer {
	o := Override{
		Branding: &BrandingOverride{
			LogoURL: t.LogoURL,
		},
	}
	if t.Name != "" {
		o.Branding.Name = &t.Name
	}
	if t.StampGoal != nil || t.StampDailyLimit != nil || t.RewardTitle != nil {
		o.Stamps = &StampsOverride{
			Goal:        t.StampGoal,
			DailyLimit:  t.StampDailyLimit,
			RewardTitle: t.RewardTitle,
		}
	}
	if t.RewardExpiresDays != nil {
		o.Rewards = &RewardsOverride{ExpiresDays: t.RewardExpiresDays}
	}
	if t.WheelEnabled != nil || t.WheelCooldownDays != nil {
		o.Wheel = &WheelOverride{
			Enabled:      t.WheelEnabled,
			CooldownDays: t.WheelCooldownDays,
		}
	}
	return Layer{Name: LayerLegacy, Override: o}
}

// ParseOverride разбирает JSON-переопределение заведения. Неизвестные поля
// попадают в issues, но остальная часть слоя применяется. Если JSON не удаётся
// разобрать даже без строгой проверки, слой пропускается.
func ParseOverride(raw []byte) (Override, []string) {
	var o Override
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return o, nil
	}

	strictErr := decodeOverride(raw, &o, true)
	if strictErr == nil {
		return o, nil
	}

	o = Override{}
	if err := decodeOverride(raw, &o, false); err != nil {
		return Override{}, []string{fmt.Sprintf("(root): invalid configuration JSON: %v", err)}
	}
	return o, []string{fmt.Sprintf("(root): %v", strictErr)}
}

func decodeOverride(raw []byte, o *Override, strict bool) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(o)
}
