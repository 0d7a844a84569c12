package types

// Event represents a typed observation emitted during exchange operations.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
