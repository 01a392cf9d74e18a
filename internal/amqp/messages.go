package amqp

import (
	"encoding/json"
	"time"
)

// LedgerSyncMessage asks the worker to mirror one recorded expense to the
// audit ledger. It carries only the ID; the worker fetches the full row from
// the database so the queue never holds stale expense data.
type LedgerSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(id int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
