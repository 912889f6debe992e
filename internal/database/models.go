package database

import "time"

type User struct {
	Id           string
	Login        string
	Username     string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
}

type Room struct {
	Id        string
	Name      string
	Members   []string
	CreatedAt time.Time
}

// RoomMember pairs a member's account id with their current username.
type RoomMember struct {
	UserId   string
	Username string
}

type Message struct {
	Id           string
	RoomId       string
	SenderId     string
	ConnectionId string
	Content      string
	CreatedAt    time.Time
}

type CreateAccountParams struct {
	Id           string
	Login        string
	Username     string
	PasswordHash string
}

type CreateRoomParams struct {
	Id      string
	Name    string
	OwnerId string
}
