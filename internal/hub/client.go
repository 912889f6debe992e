package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tgarrity/chathub/internal/database"
	"github.com/tgarrity/chathub/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// Client is one live websocket connection belonging to exactly one user.
// A user may have several. The send channel is the only handle other
// goroutines hold; the read and write pumps own everything else.
type Client struct {
	conn    *websocket.Conn
	hub     *Hub
	log     *log.Logger
	user    types.User
	connId  string
	limiter *rateLimiter

	mu          sync.Mutex
	currentRoom string
	rooms       []string

	send     chan *ServerEvent
	stop     chan struct{}
	stopOnce sync.Once
}

// NewClient wires a freshly upgraded connection to the hub. rooms is the
// user's room list copied at connection start; the connection begins in
// the hub's main room.
func NewClient(user types.User, rooms []string, conn *websocket.Conn, h *Hub, l *log.Logger) *Client {
	return &Client{
		conn:        conn,
		hub:         h,
		log:         l,
		user:        user,
		connId:      uuid.NewString(),
		limiter:     newRateLimiter(bucketCapacity, bucketWindow),
		currentRoom: h.mainRoomId,
		rooms:       rooms,
		send:        make(chan *ServerEvent, sendQueueSize),
		stop:        make(chan struct{}),
	}
}

func (c *Client) ConnectionId() string {
	return c.connId
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write pump for %q exiting", c.connId)
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read pump for %q exiting", c.connId)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		if !c.limiter.admit() {
			// deliberate silent drop: no error frame, no disconnect
			c.hub.stats.Incr("FramesRateLimited")
			continue
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing frame:", err)
			continue
		}

		c.dispatch(&ev)
	}
}

// dispatch routes one admitted frame. Persistence-heavy commands run in
// their own goroutine so a slow write never blocks the read loop.
func (c *Client) dispatch(ev *ClientEvent) {
	switch {
	case ev.NewMessage != nil:
		go c.handleNewMessage(ev.NewMessage.Content)
	case ev.DeleteMessage != nil:
		go c.handleDeleteMessage(ev.DeleteMessage.MessageId)
	case ev.CreateRoom != nil:
		go c.handleCreateRoom(ev.CreateRoom.RoomName)
	case ev.ChangeRoom != nil:
		c.handleChangeRoom(ev.ChangeRoom.RoomId)
	case ev.RemoveMember != nil:
		go c.handleRemoveMember(ev.RemoveMember.UserId, ev.RemoveMember.RoomId)
	case ev.UsernameChange != nil:
		go c.handleUsernameChange(ev.UsernameChange.NewUsername)
	default:
		c.log.Printf("dropping frame with no recognized tag from %q", c.connId)
	}
}

// handleNewMessage persists the message with a fresh id and server
// timestamp, then broadcasts it to the room it was posted in.
func (c *Client) handleNewMessage(content string) {
	msg := database.Message{
		Id:           uuid.NewString(),
		RoomId:       c.currentRoomId(),
		SenderId:     c.user.Id,
		ConnectionId: c.connId,
		Content:      content,
		CreatedAt:    Now(),
	}

	created, err := c.hub.db.CreateMessage(msg)
	if err != nil {
		c.log.Println("create message:", err)
		return
	}

	c.hub.Broadcast(&ServerEvent{
		Message: &Message{
			Content:      created.Content,
			SenderId:     created.SenderId,
			Timestamp:    created.CreatedAt,
			MessageId:    created.Id,
			RoomId:       created.RoomId,
			ConnectionId: created.ConnectionId,
		},
	}, created.RoomId, c.user.Id)
}

// handleDeleteMessage removes a message only when the requester is its
// sender; the lookup is keyed by both ids so any other requester simply
// finds nothing. On success a tombstone is broadcast to the room the
// message belonged to.
func (c *Client) handleDeleteMessage(messageId string) {
	stored, err := c.hub.db.GetMessage(c.user.Id, messageId)
	if err != nil {
		c.log.Printf("delete message %q: %v", messageId, err)
		return
	}

	if _, err := c.hub.db.DeleteMessage(stored.Id); err != nil {
		c.log.Printf("delete message %q: %v", messageId, err)
		return
	}

	c.hub.Broadcast(&ServerEvent{
		Deletion: &Deletion{
			SenderId:  c.user.Id,
			MessageId: stored.Id,
		},
	}, stored.RoomId, c.user.Id)
}

// handleCreateRoom persists a new room with the requester as its sole
// member. Membership is learned lazily, so nothing is broadcast.
func (c *Client) handleCreateRoom(roomName string) {
	room, err := c.hub.db.CreateRoom(database.CreateRoomParams{
		Id:      uuid.NewString(),
		Name:    roomName,
		OwnerId: c.user.Id,
	})
	if err != nil {
		c.log.Printf("create room %q: %v", roomName, err)
		return
	}

	c.addRoom(room.Id)
}

// handleChangeRoom switches the connection's current room and replays the
// new room's history to this connection only. No other member sees
// anything.
func (c *Client) handleChangeRoom(roomId string) {
	c.setCurrentRoom(roomId)
	go c.replayHistory(roomId)
}

func (c *Client) handleRemoveMember(userId, roomId string) {
	if err := c.hub.db.RemoveUserFromRoom(userId, roomId); err != nil {
		c.log.Printf("remove user %q from room %q: %v", userId, roomId, err)
	}
}

func (c *Client) handleUsernameChange(newUsername string) {
	if err := c.hub.ChangeUsername(c.user.Id, newUsername); err != nil {
		c.log.Printf("change username for %q: %v", c.user.Id, err)
	}
}

// sendRoomInit emits the Initialization event to this connection only:
// the caller's own identity plus every current room member's username.
func (c *Client) sendRoomInit(roomId string) {
	members, err := c.hub.db.GetRoomMembers(roomId)
	if err != nil {
		c.log.Printf("room init for %q: %v", roomId, err)
		return
	}

	memberMap := make(map[string]string, len(members))
	for _, m := range members {
		memberMap[m.UserId] = m.Username
	}

	c.queueEvent(&ServerEvent{
		Initialization: &Initialization{
			UserId:       c.user.Id,
			ConnectionId: c.connId,
			Username:     c.user.Username,
			MemberMap:    memberMap,
		},
	})
}

// replayHistory queues every persisted message of the room, oldest first,
// to this connection only. Replay is not ordered against live broadcasts
// arriving during catch-up.
func (c *Client) replayHistory(roomId string) {
	msgs, err := c.hub.db.ListRoomMessages(roomId)
	if err != nil {
		c.log.Printf("history replay for %q: %v", roomId, err)
		return
	}

	for _, msg := range msgs {
		c.queueEvent(&ServerEvent{
			Message: &Message{
				Content:      msg.Content,
				SenderId:     msg.SenderId,
				Timestamp:    msg.CreatedAt,
				MessageId:    msg.Id,
				RoomId:       msg.RoomId,
				ConnectionId: msg.ConnectionId,
			},
		})
	}
}

func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Printf("send queue full for connection %q, dropping event", c.connId)
		return false
	}

	return true
}

func (c *Client) writeFrame(msgType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write frame: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.hub.DeRegisterClient(c)
	c.stopClient()
}

func (c *Client) currentRoomId() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.currentRoom
}

func (c *Client) setCurrentRoom(roomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentRoom = roomId
}

func (c *Client) addRoom(roomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rooms = append(c.rooms, roomId)
}

// Rooms returns a copy of the connection's room list as of the last
// update.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, len(c.rooms))
	copy(rooms, c.rooms)
	return rooms
}
