package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
	"github.com/victornm/merryquiz/internal/leaderboard"
	"github.com/victornm/merryquiz/internal/view"
)

const writeTimeout = 5 * time.Second

// leaderboardSocket streams leaderboard.updated notifications for signed-in players. The current
// board is sent first, then every update published on the leaderboard and the player's own channel.
func (a *API) leaderboardSocket(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		_ = c.Error(errors.New(errors.CodeUnauthenticated, errors.WithMessagef("sign in to follow the leaderboard")))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ps := a.redis.Subscribe(ctx, a.leaderboardChannel(), a.userChannel(u.ID))
	defer ps.Close()

	// Wait for the subscription so no update between the snapshot and the first message is lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = c.Error(errors.New(errors.CodeUnavailable, errors.WithCause(err)))
		return
	}

	resp, err := a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{User: u})
	if err != nil {
		_ = c.Error(err)
		return
	}
	snapshot, err := json.Marshal(Notification{
		Event: domain.EventNameLeaderboardUpdated,
		Data:  view.Leaderboard(resp.Entries),
	})
	if err != nil {
		_ = c.Error(errors.Internal(err))
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "api: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The read loop only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := write(conn, snapshot); err != nil {
		return
	}

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := write(conn, []byte(m.Payload)); err != nil {
				slog.DebugContext(ctx, "api: websocket write failed", "user", u.ID, "error", err)
				return
			}
		}
	}
}

func write(conn *websocket.Conn, b []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
