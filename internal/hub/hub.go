package hub

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	"github.com/tgarrity/chathub/internal/database"
	"github.com/tgarrity/chathub/internal/stats"
	"github.com/tgarrity/chathub/internal/types"
)

// ErrUsernameTaken is returned when a rename targets a username that is
// already in use by any user.
var ErrUsernameTaken = errors.New("username already in use")

// Hub owns the connection registry and fans events out to room members.
// It is shared by every live connection; all state it guards internally
// is safe for concurrent use.
type Hub struct {
	log        *log.Logger
	db         database.ChatRepository
	stats      stats.StatsProvider
	registry   *registry
	mainRoomId string
}

func NewHub(logger *log.Logger, db database.ChatRepository, su stats.StatsProvider, mainRoomId string) (*Hub, error) {
	if mainRoomId == "" {
		return nil, errors.New("mainRoomId cannot be empty")
	}

	h := &Hub{
		log:        logger,
		db:         db,
		stats:      su,
		registry:   newRegistry(),
		mainRoomId: mainRoomId,
	}

	su.RegisterMetric("NumActiveConnections")
	su.RegisterMetric("NumOnlineUsers")
	su.RegisterMetric("MessagesBroadcast")
	su.RegisterMetric("FramesRateLimited")

	return h, nil
}

func (h *Hub) MainRoomId() string {
	return h.mainRoomId
}

// RegisterClient adds the connection to the registry and kicks off the
// three startup units: room snapshot, history replay and the presence
// flip. None of them block each other or the connection's read loop.
func (h *Hub) RegisterClient(c *Client) {
	h.log.Printf("registering connection %q for user %q", c.connId, c.user.Username)

	first := h.registry.register(c.user.Id, c.connId, c)
	h.stats.Incr("NumActiveConnections")
	if first {
		h.stats.Incr("NumOnlineUsers")
	}

	room := c.currentRoomId()
	go c.sendRoomInit(room)
	go c.replayHistory(room)
	go h.setPresence(c.user.Id, types.PresenceOnline)
}

// DeRegisterClient removes the connection; when it was the user's last
// one, presence is flipped to offline fire-and-forget.
func (h *Hub) DeRegisterClient(c *Client) {
	h.log.Printf("removing connection %q for user %q", c.connId, c.user.Username)

	last := h.registry.unregister(c.user.Id, c.connId)
	h.stats.Decr("NumActiveConnections")
	if last {
		h.stats.Decr("NumOnlineUsers")
		go h.setPresence(c.user.Id, types.PresenceOffline)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userId string) bool {
	return h.registry.isOnline(userId)
}

// Broadcast delivers the event to every live connection of every member
// of the room. The acting user must be a member of the room; a
// non-member's broadcast is dropped without any signal to the caller. A
// repository failure aborts the whole broadcast with no partial delivery.
func (h *Hub) Broadcast(ev *ServerEvent, roomId, actingUserId string) {
	room, err := h.db.GetRoom(roomId)
	if err != nil {
		h.log.Printf("broadcast: get room %q: %v", roomId, err)
		return
	}

	if !slices.Contains(room.Members, actingUserId) {
		h.log.Printf("broadcast: user %q is not a member of room %q, dropping", actingUserId, roomId)
		return
	}

	h.registry.fanOut(room.Members, ev)
	h.stats.Incr("MessagesBroadcast")
}

// ChangeUsername performs the uniqueness check and rename as a
// check-then-act sequence against the repository, then announces the new
// name to the main room. Two simultaneous renames to the same target can
// race; the repository's uniqueness constraint is the final arbiter.
func (h *Hub) ChangeUsername(userId, newUsername string) error {
	if h.db.UsernameInUse(newUsername) {
		return ErrUsernameTaken
	}

	user, err := h.db.GetAccountById(userId)
	if err != nil {
		return err
	}

	if err := h.db.RenameUser(user.Username, newUsername); err != nil {
		return err
	}

	h.Broadcast(&ServerEvent{
		UsernameChanged: &UsernameChanged{
			SenderId:    userId,
			NewUsername: newUsername,
		},
	}, h.mainRoomId, userId)

	return nil
}

func (h *Hub) setPresence(userId string, status types.Presence) {
	if err := h.db.SetUserPresence(userId, string(status)); err != nil {
		h.log.Printf("set presence %q for user %q: %v", status, userId, err)
	}
}

// Shutdown signals every live connection to close and waits for the
// registry to drain or the context to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Println("shutting down hub")
	for _, c := range h.registry.allClients() {
		c.stopClient()
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if h.registry.numConnections() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
