package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/merryquiz/internal/auth"
	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/event"
	"github.com/victornm/merryquiz/internal/home"
	"github.com/victornm/merryquiz/internal/leaderboard"
	"github.com/victornm/merryquiz/internal/quiz"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Auth         *auth.Service
	Home         *home.Service
	Quiz         *quiz.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type API struct {
	auth *auth.Service
	home *home.Service
	qs   *quiz.Service
	ls   *leaderboard.Service

	redis    Redis
	prefix   string
	upgrader websocket.Upgrader
}

func New(c Config) *API {
	a := &API{
		auth:   c.Auth,
		home:   c.Home,
		qs:     c.Quiz,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	// HTTP APIs
	g := c.Router.Group("/", handleErrors, a.authenticate)
	g.GET("/api/home", a.getHome)
	g.GET("/api/auth", a.getAuth)
	g.POST("/api/auth/sign-up", a.signUp)
	g.POST("/api/auth/sign-in", a.signIn)
	g.POST("/api/auth/sign-out", a.signOut)
	g.POST("/api/game", a.newGame)
	g.GET("/api/game/:id", a.getGame)
	g.POST("/api/game/:id/answer", a.answer)
	g.POST("/api/game/:id/next", a.next)
	g.DELETE("/api/game/:id", a.endGame)
	g.GET("/api/leaderboard", a.getLeaderboard)
	g.GET("/ws/leaderboard", a.leaderboardSocket)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}
