// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

const (
	maxSlugLen       = 64
	minPINLen        = 4
	maxPINLen        = 12
	maxCustomerIDLen = 128
)

// IsValidSlug проверяет slug заведения: строчные латинские буквы, цифры и дефис,
// без дефиса в начале и в конце.
func IsValidSlug(slug string) bool {
	if slug == "" || len(slug) > maxSlugLen {
		return false
	}
	if slug[0] == '-' || slug[len(slug)-1] == '-' {
		return false
	}

	for _, ch := range slug {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-':
		default:
			return false
		}
	}
	return true
}

// IsValidPIN проверяет формат PIN сотрудника: от 4 до 12 цифр.
func IsValidPIN(pin string) bool {
	if len(pin) < minPINLen || len(pin) > maxPINLen {
		return false
	}
	for _, ch := range pin {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// IsValidCustomerID проверяет непрозрачный идентификатор клиента:
// непустая строка без пробельных и управляющих символов.
func IsValidCustomerID(id string) bool {
	if id == "" || len(id) > maxCustomerIDLen {
		return false
	}
	for _, ch := range id {
		if unicode.IsSpace(ch) || unicode.IsControl(ch) || ch == unicode.ReplacementChar {
			return false
		}
	}
	return true
}
