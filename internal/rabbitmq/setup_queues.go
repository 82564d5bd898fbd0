package rabbitmq

// LedgerExchange direct exchange для событий учёта генераций.
const LedgerExchange = "ledger"

// Очередь и ключ маршрутизации событий несохранённого списания.
const (
	ReconciliationQueue = "ledger.reconciliation"
	CommitFailedKey     = "commit_failed"
)

// QueueConfig описывает очередь и ключ, которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetLedgerQueues возвращает очереди, которые объявляются на LedgerExchange.
func GetLedgerQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: ReconciliationQueue, RoutingKey: CommitFailedKey},
	}
}
