package models

import "errors"

// Коды ожидаемых нарушений предусловий команд. Коды стабильны:
// на них завязаны клиенты и HTTP-слой.
const (
	CodeEmailNotVerified     = "EMAIL_NOT_VERIFIED"
	CodeAlreadyPro           = "ALREADY_PRO"
	CodeTrialAlreadyUsed     = "TRIAL_ALREADY_USED"
	CodeNotFound             = "NOT_FOUND"
	CodeSubscriptionEnded    = "SUBSCRIPTION_ENDED"
	CodeNotActive            = "NOT_ACTIVE"
	CodePromoNotFound        = "PROMO_NOT_FOUND"
	CodePromoInactive        = "PROMO_INACTIVE"
	CodePromoMaxRedemptions  = "PROMO_MAX_REDEMPTIONS"
	CodeInvalidPerUserLimit  = "INVALID_PER_USER_LIMIT"
	CodeCodeGenerationFailed = "CODE_GENERATION_FAILED"
	CodeInvalidState         = "INVALID_STATE"
)

// CommandError — ожидаемое нарушение бизнес-правила. Возвращается командами
// как значение с устойчивым кодом и сообщением; в журнал ошибок не пишется.
type CommandError struct {
	Code    string // Устойчивый машинный код
	Message string // Человекочитаемое описание
}

func (e *CommandError) Error() string {
	return e.Code + ": " + e.Message
}

// NewCommandError создаёт CommandError с указанным кодом и сообщением.
func NewCommandError(code, message string) *CommandError {
	return &CommandError{Code: code, Message: message}
}

// CommandErrorCode извлекает код CommandError из цепочки ошибок.
// Возвращает пустую строку, если ошибка не является нарушением предусловия.
func CommandErrorCode(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	return ""
}
