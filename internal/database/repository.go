package database

// ChatRepository is the persistence gateway consumed by the hub and the
// HTTP API. The hub never implements storage itself; it only reads and
// writes through this interface. Implementations must tolerate concurrent
// use from independent connection goroutines.
type ChatRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId string) (User, error)
	GetAccountByLogin(login string) (User, error)
	UsernameInUse(username string) bool
	RenameUser(oldUsername, newUsername string) error
	SetUserPresence(accountId, status string) error

	GetRoom(roomId string) (Room, error)
	GetRoomByName(name string) (Room, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	ListRoomsForUser(accountId string) ([]Room, error)
	AddUserToRoom(accountId, roomId string) error
	RemoveUserFromRoom(accountId, roomId string) error
	GetRoomMembers(roomId string) ([]RoomMember, error)

	CreateMessage(msg Message) (Message, error)
	GetMessage(senderId, messageId string) (Message, error)
	DeleteMessage(messageId string) (Message, error)
	ListRoomMessages(roomId string) ([]Message, error)
}
