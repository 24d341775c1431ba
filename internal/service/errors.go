// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrValidation — отсутствуют обязательные поля или некорректные значения.
	ErrValidation = errors.New("ошибка валидации")
	// ErrDuplicateFileNumber — файл с таким fileNumber уже существует.
	ErrDuplicateFileNumber = errors.New("файл с таким номером уже существует")
	// ErrSerialNumberConflict — исчерпаны попытки выделить уникальный серийный номер.
	ErrSerialNumberConflict = errors.New("не удалось выделить уникальный серийный номер")
	// ErrTooManyRequests — повторная отправка той же формы в пределах окна.
	ErrTooManyRequests = errors.New("повторная отправка, подождите несколько секунд")
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrForbidden — изменение статуса через QR отключено настройками.
	ErrForbidden = errors.New("изменение статуса через QR-код отключено")
	// ErrStoreUnavailable — хранилище недоступно или не ответило вовремя.
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)
