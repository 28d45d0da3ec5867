// Package view renders pages as declarative documents. Every function here is pure: the same
// input always yields the same page, and nothing is computed at render time that a client
// re-render could change, such as option order.
package view

import (
	"fmt"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/leaderboard"
	"github.com/victornm/merryquiz/internal/quiz"
)

type Action struct {
	Label  string `json:"label"`
	Method string `json:"method"`
	Href   string `json:"href"`
}

var (
	backToHome = Action{Label: "Back to Home", Method: "GET", Href: "/"}
	playNow    = Action{Label: "Play Now", Method: "GET", Href: "/game"}
	viewScores = Action{Label: "View Scores", Method: "GET", Href: "/leaderboard"}
	signIn     = Action{Label: "Sign In", Method: "GET", Href: "/auth"}
	signOut    = Action{Label: "Sign Out", Method: "POST", Href: "/api/auth/sign-out"}
)

type Card struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      Action `json:"action"`
}

type Stat struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

type HomePage struct {
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle"`
	User     *domain.User `json:"user,omitempty"`
	Cards    []Card       `json:"cards"`
	Stats    []Stat       `json:"stats"`
	Account  Action       `json:"account"`
}

func Home(sum domain.Summary) HomePage {
	p := HomePage{
		Title:    "Christmas Trivia",
		Subtitle: "Test your holiday knowledge!",
		User:     sum.User,
		Cards: []Card{
			{Title: "Start Game", Description: "Ready to test your Christmas knowledge?", Action: playNow},
			{Title: "Leaderboard", Description: "See the top holiday experts!", Action: viewScores},
		},
		Stats: []Stat{
			{Label: "Games Played", Value: sum.GamesPlayed},
			{Label: "Total Score", Value: sum.TotalScore},
		},
		Account: signIn,
	}
	if sum.User != nil {
		p.Account = signOut
	}
	return p
}

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type AuthPage struct {
	Title string `json:"title"`
	// Redirect is set when the visitor already has a session.
	Redirect string   `json:"redirect,omitempty"`
	Fields   []Field  `json:"fields"`
	Actions  []Action `json:"actions"`
}

func Auth(u *domain.User) AuthPage {
	p := AuthPage{
		Title: "Welcome to Merry Quiz-tastic!",
		Fields: []Field{
			{Name: "email", Type: "email"},
			{Name: "password", Type: "password"},
		},
		Actions: []Action{
			{Label: "Sign In", Method: "POST", Href: "/api/auth/sign-in"},
			{Label: "Sign Up", Method: "POST", Href: "/api/auth/sign-up"},
		},
	}
	if u != nil {
		p.Redirect = "/"
	}
	return p
}

type Option struct {
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
}

type QuestionCard struct {
	Progress string   `json:"progress"`
	Prompt   string   `json:"prompt"`
	Options  []Option `json:"options"`
	// Answer is where a selected option is posted. It is nil once the question is answered.
	Answer *Action `json:"answer,omitempty"`
	// Next is only offered after an option was selected.
	Next *Action `json:"next,omitempty"`
}

type GamePage struct {
	SessionID    string             `json:"session_id"`
	Status       quiz.Status        `json:"status"`
	Score        int                `json:"score"`
	Message      string             `json:"message,omitempty"`
	Card         *QuestionCard      `json:"card,omitempty"`
	Notification *quiz.Notification `json:"notification,omitempty"`
	Summary      *quiz.Summary      `json:"summary,omitempty"`
	Actions      []Action           `json:"actions"`
}

// Game renders a quiz state. n and sum are the transient results of the last action, if any.
func Game(st quiz.State, n *quiz.Notification, sum *quiz.Summary) GamePage {
	p := GamePage{
		SessionID:    st.SessionID,
		Status:       st.Status,
		Score:        st.Score,
		Notification: n,
		Summary:      sum,
		Actions:      []Action{backToHome},
	}

	switch st.Status {
	case quiz.StatusLoading:
		p.Message = "Loading questions..."
		return p
	case quiz.StatusFailed:
		p.Message = fmt.Sprintf("Could not load questions: %s", st.Error)
		return p
	case quiz.StatusEmpty:
		p.Message = "No questions available"
		return p
	}

	c := &QuestionCard{
		Progress: fmt.Sprintf("Question %d of %d", st.Index+1, st.Total),
		Prompt:   st.Question,
		Options:  make([]Option, 0, len(st.Options)),
	}
	for _, o := range st.Options {
		c.Options = append(c.Options, Option{
			Text:     o,
			Selected: st.Answered && o == st.Selected,
			Disabled: st.Answered,
		})
	}

	if !st.Answered {
		c.Answer = &Action{Label: "Answer", Method: "POST", Href: gameHref(st.SessionID, "answer")}
	}
	if st.Answered && st.Status != quiz.StatusFinished {
		c.Next = &Action{Label: "Next Question", Method: "POST", Href: gameHref(st.SessionID, "next")}
	}
	if st.Status == quiz.StatusFinished {
		p.Actions = append(p.Actions, Action{Label: "Play Again", Method: "POST", Href: "/api/game"})
	}

	p.Card = c
	return p
}

type LeaderboardRow struct {
	Rank   string `json:"rank"`
	Player string `json:"player"`
	Score  int    `json:"score"`
}

type LeaderboardPage struct {
	Title   string           `json:"title"`
	Columns []string         `json:"columns"`
	Rows    []LeaderboardRow `json:"rows"`
	Actions []Action         `json:"actions"`
}

func Leaderboard(entries []domain.LeaderboardEntry) LeaderboardPage {
	p := LeaderboardPage{
		Title:   "Leaderboard",
		Columns: []string{"Rank", "Player", "Score"},
		Rows:    make([]LeaderboardRow, 0, len(entries)),
		Actions: []Action{backToHome},
	}
	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = leaderboard.AnonymousName
		}
		p.Rows = append(p.Rows, LeaderboardRow{
			Rank:   fmt.Sprintf("#%d", e.Rank),
			Player: name,
			Score:  e.TotalScore,
		})
	}
	return p
}

func gameHref(id, action string) string {
	return fmt.Sprintf("/api/game/%s/%s", id, action)
}
