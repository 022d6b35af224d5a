// Package response содержит общий формат ответов HTTP API.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Response стандартный ответ API.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse форма ответа с ошибкой для документации API.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	Code   string `json:"code,omitempty" example:"NOT_FOUND"`
}

const (
	// StatusOK успешный статус ответа.
	StatusOK = "OK"
	// StatusError статус ответа с ошибкой.
	StatusError = "Error"
)

// OK возвращает успешный ответ без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// OKWithData возвращает успешный ответ с данными.
func OKWithData(data any) Response {
	return Response{Status: StatusOK, Data: data}
}

// Error возвращает ответ с текстом ошибки.
func Error(msg string) Response {
	return Response{Status: StatusError, Error: msg}
}

// CommandFailure возвращает ответ с машинным кодом отказа команды.
func CommandFailure(cmdErr *models.CommandError) Response {
	return Response{
		Status: StatusError,
		Error:  cmdErr.Message,
		Code:   cmdErr.Code,
	}
}

// CommandErrorStatus сопоставляет код отказа команды с HTTP-статусом.
func CommandErrorStatus(code string) int {
	switch code {
	case models.CodeNotFound, models.CodePromoNotFound:
		return http.StatusNotFound
	case models.CodeEmailNotVerified:
		return http.StatusForbidden
	case models.CodeAlreadyPro, models.CodeTrialAlreadyUsed,
		models.CodeSubscriptionEnded, models.CodeNotActive,
		models.CodePromoInactive, models.CodePromoMaxRedemptions:
		return http.StatusConflict
	case models.CodeInvalidPerUserLimit, models.CodeInvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RenderCommandError подбирает статус и тело ответа для ошибки команды.
// Возвращает false, если ошибка не является отказом команды.
func RenderCommandError(err error) (int, Response, bool) {
	var cmdErr *models.CommandError
	if !errors.As(err, &cmdErr) {
		return 0, Response{}, false
	}
	return CommandErrorStatus(cmdErr.Code), CommandFailure(cmdErr), true
}

// ValidationError собирает читаемое сообщение из ошибок валидации запроса.
func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is below the minimum value", err.Field()))
		case "gt":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMsgs, ", "),
	}
}
