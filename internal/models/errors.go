package models

import "errors"

var (
	// ErrUnauthenticated у запроса нет действующей сессии.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound для идентичности нет записи пользователя.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists пользователь с таким email уже зарегистрирован.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials неверный email или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrQuotaExhausted генерации по тарифу закончились.
	ErrQuotaExhausted = errors.New("generation quota exhausted")
	// ErrGenerationFailed внешний сервис генерации вернул ошибку.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrLedgerCommitFailed не удалось сохранить списание генерации.
	ErrLedgerCommitFailed = errors.New("ledger commit failed")
)
