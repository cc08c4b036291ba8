package services

import (
	"errors"
	"fmt"
)

// Виды ошибок ядра. Проверяются через errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrNotOwned            = errors.New("card not owned")
	ErrNotActive           = errors.New("card not active")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSameCardTransfer    = errors.New("same card transfer")
	ErrCardAlreadyExists   = errors.New("card already exists")
	ErrValidation          = errors.New("validation failed")
	ErrInternal            = errors.New("internal error")
)

// Сообщения об ошибках
const (
	msgCardNotFound        = "Карта с ID = %s не найдена"
	msgCardNotOwned        = "Пользователь с ID = %s пытался использовать карту с ID = %s которая ему не принадлежит"
	msgCardNotActive       = "Карта пользователя не активна"
	msgInsufficientBalance = "Средств на карте недостаточно"
	msgSameCardTransfer    = "Пользователь с ID = %s пытается перевести деньги на туже карту с которой переводит"
	msgCardAlreadyExists   = "Карта с таким номером уже существует"
	msgInternal            = "Внутренняя ошибка сервера"
)

// CardError ошибка ядра с видом и сообщением для пользователя
type CardError struct {
	Kind    error
	Message string
}

func (e *CardError) Error() string {
	return e.Message
}

func (e *CardError) Unwrap() error {
	return e.Kind
}

func newCardError(kind error, format string, args ...interface{}) *CardError {
	return &CardError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// internalError скрывает причину сбоя от вызывающего кода
func internalError() *CardError {
	return &CardError{Kind: ErrInternal, Message: msgInternal}
}

// ErrorKind возвращает вид ошибки в виде строки для логов и метрик
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotOwned):
		return "not_owned"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrSameCardTransfer):
		return "same_card_transfer"
	case errors.Is(err, ErrCardAlreadyExists):
		return "card_already_exists"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
