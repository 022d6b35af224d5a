// Package jwt реализует генерацию и парсинг JWT токенов с пользовательскими
// claim полями. Токены выпускает внешний сервис авторизации; движок только
// проверяет подпись и извлекает данные пользователя.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
// IsInternal отмечает внутренних пользователей: для них Pro-доступ
// безусловный. EmailVerified проверяется перед запуском пробного периода.
type CustomClaims struct {
	UserUID              string `json:"user_uid"`       // Идентификатор пользователя
	Email                string `json:"email"`          // Адрес почты
	EmailVerified        bool   `json:"email_verified"` // Подтверждён ли адрес
	Role                 string `json:"role"`           // Роль пользователя: user или admin
	IsInternal           bool   `json:"is_internal"`    // Внутренний пользователь
	jwt.RegisteredClaims        // Встроенные стандартные claims JWT (ExpiresAt, IssuedAt и пр.)
}

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken создает токен с данными пользователя.
	GenerateToken(claims CustomClaims) (string, error)
	// ParseToken возвращает *CustomClaims, если токен корректен.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
