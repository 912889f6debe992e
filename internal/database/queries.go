package database

import (
	"fmt"
	"time"
)

const addMemberQuery = "INSERT INTO room_members (account_id, room_id, created_at) VALUES ($1, $2, $3)"

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (id, login, username, password_hash, status, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, login, username, status, created_at",
		params.Id,
		params.Login,
		params.Username,
		params.PasswordHash,
		"Offline",
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Login,
		&u.Username,
		&u.Status,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgChatRepository) GetAccountById(accountId string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, login, username, password_hash, status, created_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Login,
		&user.Username,
		&user.PasswordHash,
		&user.Status,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetAccountByLogin(login string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, login, username, password_hash, status, created_at FROM accounts "+
			"WHERE login = $1 LIMIT 1",
		login,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Login,
		&user.Username,
		&user.PasswordHash,
		&user.Status,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgChatRepository) UsernameInUse(username string) bool {
	row := db.conn.QueryRow(
		"SELECT id FROM accounts WHERE username = $1 LIMIT 1",
		username,
	)

	var id string
	return row.Scan(&id) == nil
}

func (db *PgChatRepository) RenameUser(oldUsername, newUsername string) error {
	res, err := db.conn.Exec(
		"UPDATE accounts SET username = $2 WHERE username = $1",
		oldUsername,
		newUsername,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no account with username %q", oldUsername)
	}

	return nil
}

func (db *PgChatRepository) SetUserPresence(accountId, status string) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET status = $2 WHERE id = $1",
		accountId,
		status,
	)

	return err
}

func (db *PgChatRepository) GetRoom(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, created_at FROM rooms WHERE id = $1 LIMIT 1",
		roomId,
	)

	var room Room
	if err := row.Scan(&room.Id, &room.Name, &room.CreatedAt); err != nil {
		return Room{}, err
	}

	members, err := db.listMemberIds(room.Id)
	if err != nil {
		return Room{}, fmt.Errorf("list members for room %q: %w", room.Id, err)
	}
	room.Members = members

	return room, nil
}

func (db *PgChatRepository) GetRoomByName(name string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, created_at FROM rooms WHERE name = $1 LIMIT 1",
		name,
	)

	var room Room
	if err := row.Scan(&room.Id, &room.Name, &room.CreatedAt); err != nil {
		return Room{}, err
	}

	members, err := db.listMemberIds(room.Id)
	if err != nil {
		return Room{}, fmt.Errorf("list members for room %q: %w", room.Id, err)
	}
	room.Members = members

	return room, nil
}

func (db *PgChatRepository) listMemberIds(roomId string) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT account_id FROM room_members WHERE room_id = $1",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			break
		}
		members = append(members, id)
	}

	return members, err
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (id, name, created_at) VALUES ($1, $2, $3) RETURNING id, name, created_at",
		params.Id,
		params.Name,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(&room.Id, &room.Name, &room.CreatedAt)
	if err != nil {
		return Room{}, err
	}

	if params.OwnerId != "" {
		_, err = tx.Exec(addMemberQuery, params.OwnerId, room.Id, time.Now().UTC())
		if err != nil {
			return Room{}, err
		}
		room.Members = []string{params.OwnerId}
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgChatRepository) ListRoomsForUser(accountId string) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.name, r.created_at FROM room_members m "+
			"JOIN rooms r ON r.id = m.room_id WHERE m.account_id = $1",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err = rows.Scan(&room.Id, &room.Name, &room.CreatedAt); err != nil {
			break
		}
		rooms = append(rooms, room)
	}

	return rooms, err
}

func (db *PgChatRepository) AddUserToRoom(accountId, roomId string) error {
	_, err := db.conn.Exec(addMemberQuery, accountId, roomId, time.Now().UTC())
	return err
}

func (db *PgChatRepository) RemoveUserFromRoom(accountId, roomId string) error {
	_, err := db.conn.Exec(
		"DELETE FROM room_members WHERE account_id = $1 AND room_id = $2",
		accountId,
		roomId,
	)

	return err
}

func (db *PgChatRepository) GetRoomMembers(roomId string) ([]RoomMember, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username FROM room_members AS m "+
			"JOIN accounts AS a ON m.account_id = a.id WHERE m.room_id = $1",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make([]RoomMember, 0)
	for rows.Next() {
		var member RoomMember
		if err = rows.Scan(&member.UserId, &member.Username); err != nil {
			break
		}
		members = append(members, member)
	}

	return members, err
}

func (db *PgChatRepository) CreateMessage(msg Message) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (id, room_id, sender_id, connection_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING id, room_id, sender_id, connection_id, content, created_at",
		msg.Id,
		msg.RoomId,
		msg.SenderId,
		msg.ConnectionId,
		msg.Content,
		msg.CreatedAt,
	)

	var created Message
	err := res.Scan(
		&created.Id,
		&created.RoomId,
		&created.SenderId,
		&created.ConnectionId,
		&created.Content,
		&created.CreatedAt,
	)

	return created, err
}

func (db *PgChatRepository) GetMessage(senderId, messageId string) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, sender_id, connection_id, content, created_at FROM messages "+
			"WHERE sender_id = $1 AND id = $2 LIMIT 1",
		senderId,
		messageId,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.ConnectionId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRepository) DeleteMessage(messageId string) (Message, error) {
	row := db.conn.QueryRow(
		"DELETE FROM messages WHERE id = $1 "+
			"RETURNING id, room_id, sender_id, connection_id, content, created_at",
		messageId,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.SenderId,
		&msg.ConnectionId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRepository) ListRoomMessages(roomId string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, sender_id, connection_id, content, created_at FROM messages "+
			"WHERE room_id = $1 ORDER BY created_at ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.SenderId, &msg.ConnectionId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}
		messages = append(messages, msg)
	}

	return messages, err
}
