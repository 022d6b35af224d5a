// Package promocode генерирует случайные промокоды из алфавита без визуально
// похожих символов (исключены I, O, 0 и 1), чтобы коды можно было диктовать
// и перепечатывать без ошибок.
package promocode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet — 32 допустимых символа промокода.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	groupLen   = 4
	groupCount = 3
)

// Generate возвращает новый случайный код вида XXXX-XXXX-XXXX.
func Generate() (string, error) {
	const op = "promocode.Generate"

	raw := make([]byte, groupLen*groupCount)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var b strings.Builder
	for i, r := range raw {
		if i > 0 && i%groupLen == 0 {
			b.WriteByte('-')
		}
		// 32 символа, поэтому остаток от деления не смещает распределение
		b.WriteByte(Alphabet[int(r)%len(Alphabet)])
	}
	return b.String(), nil
}

// Prefix возвращает отображаемый префикс кода — первую группу символов.
// Хранится рядом с хэшем, чтобы администратор мог опознать код в списке.
func Prefix(code string) string {
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	if len(code) > groupLen {
		return code[:groupLen]
	}
	return code
}
