package domain

import "time"

// Conversion event names.
const (
	EventSinastriaCompleted = "sinastria_completed"
	EventTemaCompleted      = "tema_completed"
	EventOroscopoCompleted  = "oroscopo_completed"
)

// ConversionEventNames is the default allowed set.
var ConversionEventNames = []string{
	EventSinastriaCompleted,
	EventTemaCompleted,
	EventOroscopoCompleted,
}

// ConversionEvent is a pending analytics event waiting for delivery.
type ConversionEvent struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
	TS     time.Time      `json:"ts"`
}
