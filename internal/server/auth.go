package server

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scottschroeder/storyestimate/internal/apperr"
)

// tokenHeader is the alternative to the Authorization header.
const tokenHeader = "TOK"

const callerKey = "callerID"

// credentialsFrom extracts a user id and token from r. It accepts Basic
// auth, a Bearer "id:token" value, or a TOK "id:token" header, but not
// more than one of them.
func credentialsFrom(r *http.Request) (id, token string, err error) {
	authz := r.Header.Get("Authorization")
	tok := r.Header.Get(tokenHeader)

	switch {
	case authz != "" && tok != "":
		return "", "", apperr.Unauthorized("credentials supplied in both Authorization and %s headers", tokenHeader)
	case tok != "":
		return splitPair(tok)
	case authz != "":
		scheme, value, _ := strings.Cut(authz, " ")
		switch strings.ToLower(scheme) {
		case "basic":
			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
			if err != nil {
				return "", "", apperr.Unauthorized("malformed basic credentials")
			}
			return splitPair(string(raw))
		case "bearer":
			return splitPair(strings.TrimSpace(value))
		default:
			return "", "", apperr.Unauthorized("unsupported authorization scheme %q", scheme)
		}
	default:
		return "", "", apperr.Unauthorized("no credentials supplied")
	}
}

func splitPair(v string) (string, string, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return "", "", apperr.Unauthorized("credentials must have the form id:token")
	}
	return parts[0], parts[1], nil
}

// requireUser authenticates the caller and stores its id on the context.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, token, err := credentialsFrom(c.Request)
		if err == nil {
			id, err = s.users.Authenticate(c.Request.Context(), id, token)
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(callerKey)
}
