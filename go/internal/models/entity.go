package models

import "encoding/json"

// Entity is a pickable combat entity owned by a user (a "user pokemon").
type Entity struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"ownerId,omitempty"`
	Name       string          `json:"name"`
	Species    string          `json:"species,omitempty"`
	Level      int             `json:"level,omitempty"`
	ImageURL   string          `json:"imageUrl,omitempty"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}
