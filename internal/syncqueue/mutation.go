package syncqueue

import (
	"encoding/json"
	"fmt"

	"github.com/mrlokans/wordsync/internal/entities"
)

// Action is the wire name of a mutation kind.
type Action string

const (
	ActionAddCollection    Action = "addCollection"
	ActionRemoveCollection Action = "removeCollection"
	ActionUpdateProgress   Action = "updateProgress"
)

// Mutation is one of AddCollection, RemoveCollection or UpdateProgress.
// The set is closed: only this package can add variants.
type Mutation interface {
	Action() Action
	Target() string
	mutation()
}

// AddCollection saves Word to the user's collection.
type AddCollection struct {
	Word string `json:"word"`
}

// RemoveCollection drops Word from the user's collection.
type RemoveCollection struct {
	Word string `json:"word"`
}

// UpdateProgress writes the review state of Word.
type UpdateProgress struct {
	Word     string                  `json:"word"`
	Progress entities.ProgressUpdate `json:"progressData"`
}

func (AddCollection) Action() Action    { return ActionAddCollection }
func (RemoveCollection) Action() Action { return ActionRemoveCollection }
func (UpdateProgress) Action() Action   { return ActionUpdateProgress }

func (m AddCollection) Target() string    { return m.Word }
func (m RemoveCollection) Target() string { return m.Word }
func (m UpdateProgress) Target() string   { return m.Word }

func (AddCollection) mutation()    {}
func (RemoveCollection) mutation() {}
func (UpdateProgress) mutation()   {}

// decodeMutation rebuilds the variant named by action from its data payload.
func decodeMutation(action Action, data json.RawMessage) (Mutation, error) {
	switch action {
	case ActionAddCollection:
		var m AddCollection
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ActionRemoveCollection:
		var m RemoveCollection
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ActionUpdateProgress:
		var m UpdateProgress
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}
