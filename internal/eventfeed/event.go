// Package eventfeed streams run progress to websocket subscribers so
// dashboards and wrapping tools can watch an unattended command live.
package eventfeed

import "encoding/json"

type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

func MustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
