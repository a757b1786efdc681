package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scottschroeder/storyestimate/internal/apperr"
	"github.com/scottschroeder/storyestimate/internal/estimate"
)

const welcomeText = "Welcome to the StoryEstimates WebApp!"

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

type joinRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

type voteRequest struct {
	Vote *uint32 `json:"vote" binding:"required"`
}

type stateRequest struct {
	State string `json:"state" binding:"required"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Status: status})
}

// fail writes err with the status of its kind. Internal errors are logged
// and their detail withheld.
func (s *Server) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		logInternal(c, err)
		abortWithError(c, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	abortWithError(c, kind.HTTPStatus(), err.Error())
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{})
}

// bind decodes the JSON body into req, answering 400 on failure.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.fail(c, apperr.BadRequest("invalid request body: %v", err))
		return false
	}
	return true
}

// pathUserIsCaller rejects requests acting on behalf of another user.
func (s *Server) pathUserIsCaller(c *gin.Context) bool {
	if uid := c.Param("uid"); uid != callerID(c) {
		s.fail(c, apperr.Unauthorized("user %s can not act as user %s", callerID(c), uid))
		return false
	}
	return true
}

func (s *Server) handleWelcome(c *gin.Context) {
	c.String(http.StatusOK, welcomeText)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIssueUser(c *gin.Context) {
	creds, err := s.users.Issue(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

func (s *Server) handleValidateUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": callerID(c)})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	view, err := s.sessions.Create(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleGetSession(c *gin.Context) {
	view, err := s.sessions.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c)
}

func (s *Server) handleSetState(c *gin.Context) {
	var req stateRequest
	if !s.bind(c, &req) {
		return
	}
	state, err := estimate.ParseState(req.State)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.sessions.SetState(c.Request.Context(), callerID(c), c.Param("id"), state); err != nil {
		s.fail(c, err)
		return
	}
	ok(c)
}

func (s *Server) handleJoin(c *gin.Context) {
	if !s.pathUserIsCaller(c) {
		return
	}
	var req joinRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.sessions.Join(c.Request.Context(), callerID(c), c.Param("id"), req.Nickname); err != nil {
		s.fail(c, err)
		return
	}
	ok(c)
}

func (s *Server) handleLeave(c *gin.Context) {
	if err := s.sessions.Leave(c.Request.Context(), callerID(c), c.Param("id"), c.Param("uid")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c)
}

func (s *Server) handleVote(c *gin.Context) {
	if !s.pathUserIsCaller(c) {
		return
	}
	var req voteRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.sessions.PlaceVote(c.Request.Context(), callerID(c), c.Param("id"), *req.Vote); err != nil {
		s.fail(c, err)
		return
	}
	ok(c)
}

func (s *Server) handleGrantAdmin(c *gin.Context) {
	if err := s.sessions.GrantAdmin(c.Request.Context(), callerID(c), c.Param("id"), c.Param("uid")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c)
}

func (s *Server) handleRevokeAdmin(c *gin.Context) {
	if err := s.sessions.RevokeAdmin(c.Request.Context(), callerID(c), c.Param("id"), c.Param("uid")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c)
}
