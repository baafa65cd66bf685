package model

// Item is the domain model for a record listed by the watch view.
// ID is the record name in the store; Name falls back to "" when the
// record has no string "name" field.
type Item struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
