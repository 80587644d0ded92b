package entities

import (
	"encoding/json"
)

// Definition is one sense of a word.
type Definition struct {
	PartOfSpeech string `json:"part_of_speech,omitempty"`
	Meaning      string `json:"definition"`
	Example      string `json:"example,omitempty"`
}

// WordRecord is the detail document served by the content origin.
// It is reference data and is never mutated after fetch.
type WordRecord struct {
	Word              string       `json:"word"`
	Pronunciation     string       `json:"pronunciation,omitempty"`
	ConciseDefinition string       `json:"concise_definition,omitempty"`
	Definitions       []Definition `json:"definitions,omitempty"`
	Examples          []string     `json:"examples,omitempty"`
	Synonyms          []string     `json:"synonyms,omitempty"`
}

// WordSummary is one row of the search index.
type WordSummary struct {
	Word              string `json:"word"`
	Pronunciation     string `json:"pronunciation,omitempty"`
	ConciseDefinition string `json:"concise_definition,omitempty"`
	FirstChar         string `json:"firstChar,omitempty"`
}

// UnmarshalJSON accepts "definition" as an alias of "concise_definition";
// older index builds wrote both spellings.
func (w *WordSummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		Word              string `json:"word"`
		Pronunciation     string `json:"pronunciation"`
		ConciseDefinition string `json:"concise_definition"`
		Definition        string `json:"definition"`
		FirstChar         string `json:"firstChar"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	w.Word = raw.Word
	w.Pronunciation = raw.Pronunciation
	w.ConciseDefinition = raw.ConciseDefinition
	if w.ConciseDefinition == "" {
		w.ConciseDefinition = raw.Definition
	}
	w.FirstChar = raw.FirstChar
	return nil
}

// DictionaryIndex is the lightweight index loaded once for search and sampling.
type DictionaryIndex struct {
	TotalWords int           `json:"totalWords"`
	Words      []WordSummary `json:"words"`
	Groups     []string      `json:"groups,omitempty"`
}
