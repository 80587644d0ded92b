package entities

import (
	"encoding/json"
	"time"
)

// KVEntry is one row of the local durable key-value store.
// Keys are unique within a namespace.
type KVEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Namespace string    `gorm:"uniqueIndex:idx_kv_namespace_key;size:64;not null" json:"namespace"`
	Key       string    `gorm:"uniqueIndex:idx_kv_namespace_key;size:255;not null" json:"key"`
	Value     []byte    `gorm:"type:blob" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// Namespaces used by the local store.
const (
	NamespaceWords = "words"
	NamespaceState = "state"
	NamespaceQueue = "queue"
)

// CacheEntry is a timestamped payload. Timestamp is epoch milliseconds.
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// StoredWord is the tier-2 word cache row.
type StoredWord struct {
	Word      string     `json:"word"`
	Data      WordRecord `json:"data"`
	Timestamp int64      `json:"timestamp"`
}
