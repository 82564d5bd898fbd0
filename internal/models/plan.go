package models

// PlanType тариф пользователя.
type PlanType string

const (
	// PlanFree бесплатный тариф.
	PlanFree PlanType = "FREE"
	// PlanPlus тариф Plus.
	PlanPlus PlanType = "PLUS"
	// PlanPro тариф Pro.
	PlanPro PlanType = "PRO"
)

// unlimitedGenerations используется как стартовый остаток для PRO.
// Учёт при этом одинаковый для всех тарифов: одна генерация списывает единицу.
const unlimitedGenerations = 1_000_000

// Valid сообщает, является ли значение известным тарифом.
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanPlus, PlanPro:
		return true
	default:
		return false
	}
}

// DefaultGenerations возвращает количество генераций, которое выдаётся при
// подключении тарифа.
func (p PlanType) DefaultGenerations() int {
	switch p {
	case PlanPlus:
		return 100
	case PlanPro:
		return unlimitedGenerations
	default:
		return 10
	}
}

func (p PlanType) String() string {
	return string(p)
}
