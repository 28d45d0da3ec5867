package domain

// Question is a multiple-choice trivia question. It is immutable once loaded for a game.
type Question struct {
	ID            int64    `json:"id" yaml:"id"`
	Question      string   `json:"question" yaml:"question"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	WrongAnswers  []string `json:"wrong_answers" yaml:"wrong_answers"`
}

// Answers returns the correct answer followed by the wrong answers.
func (q Question) Answers() []string {
	answers := make([]string, 0, 1+len(q.WrongAnswers))
	answers = append(answers, q.CorrectAnswer)
	return append(answers, q.WrongAnswers...)
}

// Profile holds the aggregate stats of a user. Its ID equals the owning user's ID.
type Profile struct {
	ID          string `json:"id"`
	TotalScore  int    `json:"total_score"`
	GamesPlayed int    `json:"games_played"`
}

// User is the identity issued by the auth subsystem.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LeaderboardRow is a profile joined with its owner's email, as returned by the store.
// Both columns are nullable.
type LeaderboardRow struct {
	ProfileID  string
	TotalScore *int
	Email      *string
}

// LeaderboardEntry is a ranked leaderboard line, ready for display.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	ProfileID   string `json:"profile_id"`
	DisplayName string `json:"display_name"`
	TotalScore  int    `json:"total_score"`
}

// Summary is what the home view shows for the current user.
type Summary struct {
	User        *User `json:"user,omitempty"`
	GamesPlayed int   `json:"games_played"`
	TotalScore  int   `json:"total_score"`
}
