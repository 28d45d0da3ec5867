package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/merryquiz/internal/auth"
	"github.com/victornm/merryquiz/internal/errors"
	"github.com/victornm/merryquiz/internal/home"
	"github.com/victornm/merryquiz/internal/leaderboard"
	"github.com/victornm/merryquiz/internal/quiz"
	"github.com/victornm/merryquiz/internal/view"
)

func (a *API) getHome(c *gin.Context) {
	sum := a.home.Summary(c.Request.Context(), home.SummaryRequest{User: currentUser(c)})
	c.JSON(http.StatusOK, view.Home(*sum))
}

func (a *API) getAuth(c *gin.Context) {
	c.JSON(http.StatusOK, view.Auth(currentUser(c)))
}

func (a *API) signUp(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.InvalidArgument("invalid request body: %v", err))
		return
	}

	sess, err := a.auth.SignUp(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, sess)
}

func (a *API) signIn(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.InvalidArgument("invalid request body: %v", err))
		return
	}

	sess, err := a.auth.SignIn(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (a *API) signOut(c *gin.Context) {
	if err := a.auth.SignOut(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) newGame(c *gin.Context) {
	st, err := a.qs.NewGame(c.Request.Context(), quiz.NewGameRequest{User: currentUser(c)})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, view.Game(*st, nil, nil))
}

func (a *API) getGame(c *gin.Context) {
	st, err := a.qs.GetGame(c.Request.Context(), quiz.GetGameRequest{
		SessionID: c.Param("id"),
		User:      currentUser(c),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view.Game(*st, nil, nil))
}

type answerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// answer does not wait for the score write; its outcome is logged by the score service.
func (a *API) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.InvalidArgument("invalid request body: %v", err))
		return
	}

	resp, err := a.qs.Answer(c.Request.Context(), quiz.AnswerRequest{
		SessionID: c.Param("id"),
		User:      currentUser(c),
		Answer:    req.Answer,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view.Game(resp.State, &resp.Notification, nil))
}

func (a *API) next(c *gin.Context) {
	resp, err := a.qs.Advance(c.Request.Context(), quiz.AdvanceRequest{
		SessionID: c.Param("id"),
		User:      currentUser(c),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view.Game(resp.State, resp.Notification, resp.Summary))
}

func (a *API) endGame(c *gin.Context) {
	err := a.qs.EndGame(c.Request.Context(), quiz.EndGameRequest{
		SessionID: c.Param("id"),
		User:      currentUser(c),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) getLeaderboard(c *gin.Context) {
	resp, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{User: currentUser(c)})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view.Leaderboard(resp.Entries))
}
