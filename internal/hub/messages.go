package hub

import (
	"time"
)

// ClientEvent is an inbound frame. Exactly one field is expected to be
// set; a frame with no recognized tag is dropped.
type ClientEvent struct {
	NewMessage     *NewMessage     `json:"new_message,omitempty"`
	DeleteMessage  *DeleteMessage  `json:"delete_message,omitempty"`
	CreateRoom     *CreateRoom     `json:"create_room,omitempty"`
	ChangeRoom     *ChangeRoom     `json:"change_room,omitempty"`
	RemoveMember   *RemoveMember   `json:"remove_member,omitempty"`
	UsernameChange *UsernameChange `json:"username_change,omitempty"`
}

type NewMessage struct {
	Content string `json:"content"`
}

type DeleteMessage struct {
	MessageId string `json:"message_id"`
}

type CreateRoom struct {
	RoomName string `json:"room_name"`
}

type ChangeRoom struct {
	RoomId string `json:"room_id"`
}

type RemoveMember struct {
	UserId string `json:"user_id"`
	RoomId string `json:"room_id"`
}

type UsernameChange struct {
	NewUsername string `json:"new_username"`
}

// ServerEvent is an outbound frame. The image, notification and typing
// tags are reserved: clients understand them but the hub does not
// currently emit them.
type ServerEvent struct {
	Initialization  *Initialization  `json:"initialization,omitempty"`
	Message         *Message         `json:"message,omitempty"`
	Deletion        *Deletion        `json:"deletion,omitempty"`
	UsernameChanged *UsernameChanged `json:"username_changed,omitempty"`
	NewUser         *NewUser         `json:"new_user,omitempty"`
	Image           *Image           `json:"image,omitempty"`
	Notification    *Notification    `json:"notification,omitempty"`
	Typing          *Typing          `json:"typing,omitempty"`
}

// Initialization is sent once to a freshly connected client: its own
// identity plus the id-to-username map of everyone in its starting room.
type Initialization struct {
	UserId       string            `json:"user_id"`
	ConnectionId string            `json:"connection_id"`
	Username     string            `json:"username"`
	MemberMap    map[string]string `json:"member_map"`
}

type Message struct {
	Content      string    `json:"content"`
	SenderId     string    `json:"sender_id"`
	Timestamp    time.Time `json:"timestamp"`
	MessageId    string    `json:"message_id"`
	RoomId       string    `json:"room_id"`
	ConnectionId string    `json:"connection_id"`
}

// Deletion is the tombstone for a removed message. It intentionally
// carries no content.
type Deletion struct {
	SenderId  string `json:"sender_id"`
	MessageId string `json:"message_id"`
}

type UsernameChanged struct {
	SenderId    string `json:"sender_id"`
	NewUsername string `json:"new_username"`
}

type NewUser struct {
	UserId   string `json:"user_id"`
	Username string `json:"username"`
}

type Image struct {
	ImageUrl string `json:"image_url"`
	SenderId string `json:"sender_id"`
}

type Notification struct {
	SenderId string `json:"sender_id"`
}

type Typing struct {
	SenderId string `json:"sender_id"`
}

// Now returns the server timestamp assigned to new messages.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
