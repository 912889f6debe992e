package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId string) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByLogin(login string) (User, error) {
	args := m.Called(login)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) UsernameInUse(username string) bool {
	args := m.Called(username)
	return args.Bool(0)
}
func (m *MockChatRepository) RenameUser(oldUsername, newUsername string) error {
	args := m.Called(oldUsername, newUsername)
	return args.Error(0)
}
func (m *MockChatRepository) SetUserPresence(accountId, status string) error {
	args := m.Called(accountId, status)
	return args.Error(0)
}
func (m *MockChatRepository) GetRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomByName(name string) (Room, error) {
	args := m.Called(name)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) ListRoomsForUser(accountId string) ([]Room, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) AddUserToRoom(accountId, roomId string) error {
	args := m.Called(accountId, roomId)
	return args.Error(0)
}
func (m *MockChatRepository) RemoveUserFromRoom(accountId, roomId string) error {
	args := m.Called(accountId, roomId)
	return args.Error(0)
}
func (m *MockChatRepository) GetRoomMembers(roomId string) ([]RoomMember, error) {
	args := m.Called(roomId)
	return args.Get(0).([]RoomMember), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessage(senderId, messageId string) (Message, error) {
	args := m.Called(senderId, messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) DeleteMessage(messageId string) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) ListRoomMessages(roomId string) ([]Message, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Message), args.Error(1)
}
