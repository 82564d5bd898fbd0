// Package models содержит доменные структуры сервиса: пользователя с тарифом
// и остатком генераций, идентичность запроса и результаты генерации.
package models

import "database/sql"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID            string   // Уникальный идентификатор пользователя
	Email           string   // Электронная почта, ключ идентичности
	FirstName       *string  // Имя (может отсутствовать)
	LastName        *string  // Фамилия (может отсутствовать)
	PasswordHash    string   `json:"-"` // Хэш пароля, в кэш не попадает
	PlanType        PlanType // Тариф: FREE, PLUS или PRO
	GenerationsLeft int      // Остаток генераций, всегда >= 0
}

// UserRecord строка таблицы users в том виде, в каком её читает хранилище.
// Колонки тарифа допускают NULL для записей, созданных до миграции тарифов.
type UserRecord struct {
	UUID            string
	Email           string
	FirstName       sql.NullString
	LastName        sql.NullString
	PasswordHash    string
	PlanType        sql.NullString
	GenerationsLeft sql.NullInt64
}

// ToUser переводит строку хранилища в доменную модель, подставляя значения
// по умолчанию для отсутствующих колонок тарифа (FREE и 10 генераций).
func (r UserRecord) ToUser() *User {
	u := &User{
		UUID:            r.UUID,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash,
		PlanType:        PlanFree,
		GenerationsLeft: PlanFree.DefaultGenerations(),
	}
	if r.FirstName.Valid {
		u.FirstName = &r.FirstName.String
	}
	if r.LastName.Valid {
		u.LastName = &r.LastName.String
	}
	if r.PlanType.Valid {
		if p := PlanType(r.PlanType.String); p.Valid() {
			u.PlanType = p
		}
	}
	if r.GenerationsLeft.Valid {
		u.GenerationsLeft = max(0, int(r.GenerationsLeft.Int64))
	}
	return u
}
