// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// MaxPrincipalLength — максимальная длина идентификатора участника.
const MaxPrincipalLength = 128

// IsValidPrincipal проверяет идентификатор участника: непустой, не длиннее
// MaxPrincipalLength, из латинских букв, цифр и символов . _ - : @
func IsValidPrincipal(p string) bool {
	if p == "" || len(p) > MaxPrincipalLength {
		return false
	}

	for _, ch := range p {
		if ch > unicode.MaxASCII {
			return false
		}
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			continue
		}
		switch ch {
		case '.', '_', '-', ':', '@':
			continue
		}
		return false
	}

	return true
}
