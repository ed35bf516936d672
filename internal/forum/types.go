// Package forum is the typed client for the investor/startup forum API.
// It layers JSON codecs and endpoint knowledge over the authenticated
// gateway; all authorization decisions happen below it.
package forum

import (
	"encoding/json"
	"fmt"

	"venturechat/internal/auth"
)

// OID is an object identifier as the backend serializes it. The messaging
// store emits Mongo extended JSON ({"$oid": "..."}) in some responses and a
// plain string in others, so the codec accepts both.
type OID string

func (o *OID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var ext struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(data, &ext); err != nil {
			return fmt.Errorf("decode extended object id: %w", err)
		}
		*o = OID(ext.OID)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode object id: %w", err)
	}
	*o = OID(s)
	return nil
}

func (o OID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(o))
}

// Room is a conversation between exactly the two participants established
// at creation; membership never changes afterwards in this client's view.
type Room struct {
	ID           OID             `json:"id"`
	Name         string          `json:"name"`
	Participants []auth.Identity `json:"participants"`
}

func (r *Room) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID             OID             `json:"id"`
		MongoID        OID             `json:"_id"`
		ConversationID OID             `json:"conversation_id"`
		Name           string          `json:"name"`
		Participants   []auth.Identity `json:"participants"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.ID = aux.ID
	if r.ID == "" {
		r.ID = aux.MongoID
	}
	if r.ID == "" {
		r.ID = aux.ConversationID
	}
	r.Name = aux.Name
	r.Participants = aux.Participants
	return nil
}

// Message is one append-only chat entry. Ordering is server-assigned
// arrival order, observed by the client as list order.
type Message struct {
	ID        OID           `json:"id"`
	Room      OID           `json:"room"`
	Author    auth.Identity `json:"author"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"created_at,omitempty"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        OID           `json:"id"`
		MongoID   OID           `json:"_id"`
		Room      OID           `json:"room"`
		Author    auth.Identity `json:"author"`
		Content   string        `json:"content"`
		CreatedAt string        `json:"created_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.ID = aux.ID
	if m.ID == "" {
		m.ID = aux.MongoID
	}
	m.Room = aux.Room
	m.Author = aux.Author
	m.Content = aux.Content
	m.CreatedAt = aux.CreatedAt
	return nil
}

// Startup is read-only reference data from the catalog.
type Startup struct {
	StartupID int64  `json:"startup_id"`
	User      int64  `json:"user"`
	Name      string `json:"name"`
}

// Session is the profile payload returned by login. The tokens also arrive
// as cookies; the body copy exists for callers that want to inspect them.
type Session struct {
	Email   string `json:"email"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// InvestorCabinet is one investor role a user holds.
type InvestorCabinet struct {
	InvestorID int64 `json:"investor_id"`
}

// StartupCabinet is one startup role a user holds.
type StartupCabinet struct {
	StartupID int64 `json:"startup_id"`
}
