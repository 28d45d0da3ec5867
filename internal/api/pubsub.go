package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/view"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	// Standing is sent to each ranked player on their own channel.
	Standing struct {
		Rank       int `json:"rank"`
		TotalScore int `json:"total_score"`
	}
)

// PublishLeaderboardUpdated fans a new leaderboard out to the shared leaderboard channel and
// tells every ranked player their standing.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	if err := a.publishNotification(ctx, a.leaderboardChannel(), e.Name(), view.Leaderboard(e.Entries)); err != nil {
		return err
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range e.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, a.userChannel(entry.ProfileID), e.Name(), Standing{
				Rank:       entry.Rank,
				TotalScore: entry.TotalScore,
			})
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) leaderboardChannel() string {
	return fmt.Sprintf("%s:leaderboard", a.prefix)
}

func (a *API) userChannel(id string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, id)
}
