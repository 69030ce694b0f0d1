package service

import (
	"encoding/json"
	"fmt"
)

// Codec is the connect codec used by RoomService. Messages are plain Go
// structs encoded as JSON under the "json" codec name, so any Connect JSON
// client (or curl) can call the service.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
