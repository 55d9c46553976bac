package tenantconfig

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/mmeshcher/stampcard/internal/model"
)

// MinWheelSegments задаёт минимальное число секторов колеса.
const MinWheelSegments = 4

var businessTypes = map[string]struct{}{
	"cafe": {}, "bar": {}, "barber": {}, "gym": {}, "retail": {},
}

type issues []string

func (is *issues) add(path, format string, args ...any) {
	*is = append(*is, path+": "+fmt.Sprintf(format, args...))
}

// Validate проверяет конфигурацию и возвращает список проблем в формате "path: message".
// Пустой список означает валидную конфигурацию.
func Validate(c Config) []string {
	var is issues

	if c.Version <= 0 {
		is.add("version", "must be a positive integer")
	}
	if c.BusinessType != "" {
		if _, ok := businessTypes[c.BusinessType]; !ok {
			is.add("business_type", "must be one of cafe, bar, barber, gym, retail")
		}
	}

	validateURL(&is, "branding.logo_url", c.Branding.LogoURL)
	validateURL(&is, "branding.favicon_url", c.Branding.FaviconURL)

	if c.Stamps.Goal <= 0 {
		is.add("stamps.goal", "must be a positive integer")
	}
	if c.Stamps.DailyLimit < 0 {
		is.add("stamps.daily_limit", "must be a non-negative integer")
	}
	if c.Stamps.RewardTitle != nil && *c.Stamps.RewardTitle == "" {
		is.add("stamps.reward_title", "must not be empty")
	}

	if c.Rewards.ExpiresDays <= 0 {
		is.add("rewards.expires_days", "must be a positive integer")
	}

	if c.Wheel.CooldownDays < 0 {
		is.add("wheel.cooldown_days", "must be a non-negative integer")
	}
	if len(c.Wheel.Segments) < MinWheelSegments {
		is.add("wheel.segments", "must contain at least %d segments, got %d", MinWheelSegments, len(c.Wheel.Segments))
	}
	for i, s := range c.Wheel.Segments {
		path := fmt.Sprintf("wheel.segments.%d", i)
		if s.ID == "" {
			is.add(path+".id", "is required")
		}
		if s.Label == "" {
			is.add(path+".label", "is required")
		}
		if !s.Type.Valid() {
			is.add(path+".type", "must be one of none, stamp, reward, got %q", s.Type)
		}
		if s.Weight <= 0 || s.Weight > model.MaxSegmentWeight {
			is.add(path+".weight", "must be between 1 and %d", model.MaxSegmentWeight)
		}
		if s.Value != nil && *s.Value < 0 {
			is.add(path+".value", "must be a non-negative integer")
		}
	}
	if colors := c.Wheel.UI.SegmentColors; colors != nil {
		if len(colors) < 2 {
			is.add("wheel.ui.segment_colors", "must contain at least 2 colors")
		}
		for i, col := range colors {
			if col == "" {
				is.add(fmt.Sprintf("wheel.ui.segment_colors.%d", i), "must not be empty")
			}
		}
	}

	sections := make([]string, 0, len(c.Texts))
	for section := range c.Texts {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	for _, section := range sections {
		keys := make([]string, 0, len(c.Texts[section]))
		for k := range c.Texts[section] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if c.Texts[section][k] == "" {
				is.add("texts."+section+"."+k, "must not be empty")
			}
		}
	}

	return is
}

func validateURL(is *issues, path string, v *string) {
	if v == nil {
		return
	}
	u, err := url.Parse(*v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		is.add(path, "must be an absolute URL")
	}
}
