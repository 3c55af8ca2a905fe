// ABOUTME: Wire types for the pet-adoption REST API: users, conversations, messages, pets
// ABOUTME: Payloads are parsed and validated at the boundary instead of trusted as-is

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// localLayouts are the zone-less layouts the backend emits for LocalDateTime.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time is a timestamp that accepts RFC 3339, zone-less ISO-8601 (read as UTC)
// and Jackson's array form [year, month, day, hour, minute, second, nanos].
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time { return Time{Time: t} }

func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("parsing timestamp array: %w", err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("timestamp array too short: %v", parts)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTime parses a backend timestamp string.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// User is the authenticated account returned by GET /auth/me.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"userRole"`
	Location     string `json:"location,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Validate checks the fields the inbox depends on.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("user id must be positive, got %d", u.ID)
	}
	return nil
}

// Message is a single chat message about a pet between two users.
type Message struct {
	ID                 int64  `json:"id"`
	SenderID           int64  `json:"senderId"`
	SenderName         string `json:"senderName,omitempty"`
	SenderProfileImage string `json:"senderProfileImage,omitempty"`
	ReceiverID         int64  `json:"receiverId"`
	ReceiverName       string `json:"receiverName,omitempty"`
	PetID              int64  `json:"petId"`
	PetName            string `json:"petName,omitempty"`
	Content            string `json:"content"`
	Timestamp          Time   `json:"timestamp"`
	Read               bool   `json:"read"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	var raw struct {
		alias
		IsRead *bool `json:"isRead"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message(raw.alias)
	if raw.IsRead != nil {
		m.Read = m.Read || *raw.IsRead
	}
	return nil
}

// Validate rejects messages that cannot be placed in a conversation.
func (m *Message) Validate() error {
	switch {
	case m.ID <= 0:
		return fmt.Errorf("message id must be positive, got %d", m.ID)
	case m.SenderID <= 0 || m.ReceiverID <= 0:
		return fmt.Errorf("message %d has no sender or receiver", m.ID)
	case m.PetID <= 0:
		return fmt.Errorf("message %d has no pet", m.ID)
	case strings.TrimSpace(m.Content) == "":
		return fmt.Errorf("message %d has no content", m.ID)
	}
	return nil
}

// Peer returns the other participant of m as seen by viewerID.
func (m *Message) Peer(viewerID int64) int64 {
	if m.SenderID == viewerID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Involves reports whether viewerID sent or received m.
func (m *Message) Involves(viewerID int64) bool {
	return m.SenderID == viewerID || m.ReceiverID == viewerID
}

// SortMessages orders msgs by timestamp ascending. Equal timestamps keep
// their arrival order.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.Timestamp.Compare(b.Timestamp.Time)
	})
}

// Conversation summarizes the thread between the viewer and one other user
// about one pet.
type Conversation struct {
	PetID                 int64  `json:"petId"`
	PetName               string `json:"petName"`
	OtherUserID           int64  `json:"otherUserId"`
	OtherUserName         string `json:"otherUserName"`
	OtherUserProfileImage string `json:"otherUserProfileImage,omitempty"`
	LastMessage           string `json:"lastMessage"`
	LastMessageTime       Time   `json:"lastMessageTime"`
	UnreadCount           int    `json:"unreadCount"`
}

func (c *Conversation) UnmarshalJSON(data []byte) error {
	type alias Conversation
	var raw struct {
		alias
		Timestamp *Time `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Conversation(raw.alias)
	if c.LastMessageTime.IsZero() && raw.Timestamp != nil {
		c.LastMessageTime = *raw.Timestamp
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	return nil
}

// Validate rejects conversations without a pet or peer.
func (c *Conversation) Validate() error {
	if c.PetID <= 0 || c.OtherUserID <= 0 {
		return fmt.Errorf("conversation has no pet or peer (pet=%d, peer=%d)", c.PetID, c.OtherUserID)
	}
	return nil
}

// Pet is the subset of a pet listing used by the favorites views.
type Pet struct {
	ID          int64    `json:"id"`
	PetName     string   `json:"petName"`
	Specie      string   `json:"specie,omitempty"`
	Breed       string   `json:"breed,omitempty"`
	Age         string   `json:"age,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Location    string   `json:"location,omitempty"`
	PhotoURL    string   `json:"photoUrl,omitempty"`
	OwnerID     int64    `json:"ownerId,omitempty"`
	OwnerName   string   `json:"ownerName,omitempty"`
	IsAvailable *bool    `json:"isAvailable,omitempty"`
	AdoptionFee *float64 `json:"adoptionFee,omitempty"`
}

// sendRequest is the JSON body sent to POST /messages.
type sendRequest struct {
	ReceiverID int64  `json:"receiverId"`
	PetID      int64  `json:"petId"`
	Content    string `json:"content"`
}
