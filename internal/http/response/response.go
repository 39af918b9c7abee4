// Package response содержит типы и функции для формирования единых JSON-ответов
// HTTP-обработчиков: успешных, с ошибкой и с ошибками валидации.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Response стандартная структура JSON-ответа сервера.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// MsgInternal текст для ошибок, детали которых не отдаются клиенту.
const MsgInternal = "internal error"

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ответ с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

var statusByErr = []struct {
	err  error
	code int
}{
	{models.ErrValidation, http.StatusBadRequest},
	{models.ErrSignature, http.StatusBadRequest},
	{models.ErrInvalidCredentials, http.StatusUnauthorized},
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrAlreadyPremium, http.StatusConflict},
	{models.ErrNotReady, http.StatusConflict},
	{models.ErrEmailTaken, http.StatusConflict},
	{models.ErrFileMissing, http.StatusGone},
	{models.ErrQuotaExceeded, http.StatusTooManyRequests},
}

// FromError сопоставляет доменную ошибку с HTTP-статусом и телом ответа.
// Для неизвестных ошибок возвращает 500 без подробностей.
func FromError(err error) (int, ErrorResponse) {
	for _, e := range statusByErr {
		if errors.Is(err, e.err) {
			return e.code, Error(e.err.Error())
		}
	}
	return http.StatusInternalServerError, Error(MsgInternal)
}

// ValidationError формирует ответ на основе ошибок валидации.
// Нарушения объединяются через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "url":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid url", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
