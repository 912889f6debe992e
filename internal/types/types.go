package types

import (
	"time"
)

// Presence is a user's connection status. A user is Online iff they have
// at least one live websocket connection.
type Presence string

const (
	PresenceOnline  Presence = "Online"
	PresenceOffline Presence = "Offline"
)

type User struct {
	Id        string    `json:"id"`
	Login     string    `json:"login,omitempty"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Status    Presence  `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RoomMember is the id/username pair sent to a freshly connected client
// for every current member of its room.
type RoomMember struct {
	UserId   string `json:"user_id"`
	Username string `json:"username"`
}

type Message struct {
	Id           string    `json:"message_id"`
	RoomId       string    `json:"room_id"`
	SenderId     string    `json:"sender_id"`
	ConnectionId string    `json:"connection_id"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
}
