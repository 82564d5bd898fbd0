package models

import "time"

// Identity аутентифицированный субъект запроса.
type Identity struct {
	UserUID string
	Email   string
}

// Entitlement результат проверки права на генерацию.
type Entitlement struct {
	Allowed   bool     `json:"allowed"`
	Plan      PlanType `json:"plan"`
	Remaining int      `json:"remaining"`
}

// GenerationRequest одноразовый запрос на генерацию логотипа.
type GenerationRequest struct {
	Identity  Identity
	Sketch    []byte // Декодированное изображение эскиза
	MIMEType  string
	RequestID string
}

// GenerationResult результат генерации вместе с актуальным остатком.
//
// CommitFailed выставляется, когда изображение получено, но списание
// генерации сохранить не удалось; остаток в этом случае взят из проверки.
type GenerationResult struct {
	Logo            string
	GenerationsLeft int
	CommitFailed    bool
}

// CommitFailure событие для сверки, публикуется когда списание не сохранилось.
type CommitFailure struct {
	RequestID  string    `json:"request_id"`
	UserEmail  string    `json:"user_email"`
	OccurredAt time.Time `json:"occurred_at"`
	Error      string    `json:"error"`
}
