// Package codehash реализует версионированное HMAC-хэширование промокодов
// и адресов электронной почты. В базе хранится только хэш и номер версии
// секрета, что позволяет искать записи без хранения открытого значения
// и ротировать секреты без перехэширования существующих строк:
// новые данные хэшируются последним секретом, поиск идёт по всем версиям.
package codehash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash — хэш значения вместе с версией секрета, которым он получен.
type Hash struct {
	Version int    // Номер версии секрета, начиная с 1
	Value   string // HMAC-SHA256 в шестнадцатеричном виде
}

// Hasher хранит упорядоченный список секретов. Версия секрета равна его
// позиции в списке, начиная с 1; последний секрет считается актуальным.
type Hasher struct {
	secrets []string
}

// New создаёт Hasher из упорядоченного списка секретов.
// Пустой список или пустой секрет — ошибка конфигурации развёртывания.
func New(secrets []string) (*Hasher, error) {
	const op = "codehash.New"
	if len(secrets) == 0 {
		return nil, fmt.Errorf("%s: no hash secrets configured", op)
	}
	for i, s := range secrets {
		if s == "" {
			return nil, fmt.Errorf("%s: hash secret %d is empty", op, i+1)
		}
	}
	return &Hasher{secrets: secrets}, nil
}

// LatestVersion возвращает номер актуальной версии секрета.
func (h *Hasher) LatestVersion() int {
	return len(h.secrets)
}

// HashCode хэширует нормализованный промокод актуальным секретом.
func (h *Hasher) HashCode(code string) Hash {
	return h.hashLatest(NormalizeCode(code))
}

// HashEmail хэширует нормализованный адрес почты актуальным секретом.
func (h *Hasher) HashEmail(email string) Hash {
	return h.hashLatest(NormalizeEmail(email))
}

// CodeHashes возвращает хэши промокода для всех версий секретов,
// от новых к старым. Используется при поиске записи.
func (h *Hasher) CodeHashes(code string) []Hash {
	return h.hashAll(NormalizeCode(code))
}

// EmailHashes возвращает хэши адреса почты для всех версий секретов,
// от новых к старым.
func (h *Hasher) EmailHashes(email string) []Hash {
	return h.hashAll(NormalizeEmail(email))
}

func (h *Hasher) hashLatest(value string) Hash {
	return Hash{
		Version: len(h.secrets),
		Value:   hmacHex(h.secrets[len(h.secrets)-1], value),
	}
}

func (h *Hasher) hashAll(value string) []Hash {
	result := make([]Hash, 0, len(h.secrets))
	for v := len(h.secrets); v >= 1; v-- {
		result = append(result, Hash{
			Version: v,
			Value:   hmacHex(h.secrets[v-1], value),
		})
	}
	return result
}

func hmacHex(secret, value string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizeCode приводит промокод к каноническому виду:
// верхний регистр, без пробелов и дефисов.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// NormalizeEmail приводит адрес почты к каноническому виду:
// нижний регистр без окружающих пробелов.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
