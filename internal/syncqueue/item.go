package syncqueue

import (
	"encoding/json"
	"fmt"
)

// Item is one pending mutation owned by UserID.
type Item struct {
	ID        string
	UserID    string
	Mutation  Mutation
	Timestamp int64 // epoch milliseconds
}

type wireItem struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func (i Item) MarshalJSON() ([]byte, error) {
	if i.Mutation == nil {
		return nil, fmt.Errorf("queue item %s has no mutation", i.ID)
	}
	data, err := json.Marshal(i.Mutation)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireItem{
		ID:        i.ID,
		UserID:    i.UserID,
		Action:    i.Mutation.Action(),
		Data:      data,
		Timestamp: i.Timestamp,
	})
}

func (i *Item) UnmarshalJSON(b []byte) error {
	var w wireItem
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	m, err := decodeMutation(w.Action, w.Data)
	if err != nil {
		return fmt.Errorf("queue item %s: %w", w.ID, err)
	}
	*i = Item{ID: w.ID, UserID: w.UserID, Mutation: m, Timestamp: w.Timestamp}
	return nil
}
