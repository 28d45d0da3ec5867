package domain

const (
	EventNameProfileUpdated     = "profile.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventProfileUpdated struct {
	Profile Profile
}

func (EventProfileUpdated) Name() string { return EventNameProfileUpdated }

type EventLeaderboardUpdated struct {
	Entries []LeaderboardEntry
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
