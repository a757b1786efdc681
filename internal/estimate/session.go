package estimate

import (
	"slices"
	"time"

	"github.com/scottschroeder/storyestimate/internal/apperr"
)

// Member is a user's participation in one session. A nil Vote means no
// vote has been cast this round. Revealed is set when the session is
// revealed and cleared by the next vote.
type Member struct {
	UserID   string  `json:"user_id"`
	Nickname string  `json:"nickname"`
	Vote     *uint32 `json:"vote,omitempty"`
	Revealed bool    `json:"revealed,omitempty"`
}

// Session is the stored state of one estimation session.
type Session struct {
	ID        string    `json:"session_id"`
	State     State     `json:"state"`
	Members   []*Member `json:"members"`
	Admins    []string  `json:"admins"`
	CreatedAt time.Time `json:"created_at"`
}

func newSession(id, creatorID string) *Session {
	return &Session{
		ID:        id,
		State:     StateClean,
		Members:   []*Member{},
		Admins:    []string{creatorID},
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Members = make([]*Member, len(s.Members))
	for i, m := range s.Members {
		mc := *m
		if m.Vote != nil {
			v := *m.Vote
			mc.Vote = &v
		}
		cp.Members[i] = &mc
	}
	cp.Admins = slices.Clone(s.Admins)
	if cp.Admins == nil {
		cp.Admins = []string{}
	}
	return &cp
}

// Member returns the member record for userID, or nil.
func (s *Session) Member(userID string) *Member {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// IsAdmin reports whether userID holds admin rights in the session.
func (s *Session) IsAdmin(userID string) bool {
	return slices.Contains(s.Admins, userID)
}

func (s *Session) requireAdmin(userID string) error {
	if !s.IsAdmin(userID) {
		return apperr.Forbidden("user %s is not an admin of session %s", userID, s.ID)
	}
	return nil
}

// Join adds userID as a member or, if already present, renames it in place.
func (s *Session) Join(userID, nickname string) {
	if m := s.Member(userID); m != nil {
		m.Nickname = nickname
		return
	}
	s.Members = append(s.Members, &Member{UserID: userID, Nickname: nickname})
}

// Leave removes target from the session. Anyone may remove themselves;
// removing somebody else takes an admin.
func (s *Session) Leave(caller, target string) error {
	if caller != target {
		if err := s.requireAdmin(caller); err != nil {
			return err
		}
	}
	i := slices.IndexFunc(s.Members, func(m *Member) bool { return m.UserID == target })
	if i < 0 {
		return apperr.NotFound("user %s is not a member of session %s", target, s.ID)
	}
	s.Members = slices.Delete(s.Members, i, i+1)
	s.Admins = slices.DeleteFunc(s.Admins, func(id string) bool { return id == target })
	return nil
}

// PlaceVote records a hidden vote for userID. The vote stays hidden until
// the next reveal, even if the session is already Visible.
func (s *Session) PlaceVote(userID string, amount uint32) error {
	m := s.Member(userID)
	if m == nil {
		return apperr.NotFound("user %s is not a member of session %s", userID, s.ID)
	}
	m.Vote = &amount
	m.Revealed = false
	return nil
}

// GrantAdmin gives target admin rights. target need not be a member.
func (s *Session) GrantAdmin(caller, target string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if s.IsAdmin(target) {
		return apperr.BadRequest("user %s is already an admin of session %s", target, s.ID)
	}
	s.Admins = append(s.Admins, target)
	return nil
}

// RevokeAdmin takes admin rights from target. Admins may revoke themselves,
// even if that leaves the session without any admin.
func (s *Session) RevokeAdmin(caller, target string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if !s.IsAdmin(target) {
		return apperr.BadRequest("user %s is not an admin of session %s", target, s.ID)
	}
	s.Admins = slices.DeleteFunc(s.Admins, func(id string) bool { return id == target })
	return nil
}

// SetState moves the session to state on behalf of an admin caller.
//
// Visible reveals cast votes. Voting starts a new round and Clean resets the
// session; both clear every vote.
func (s *Session) SetState(caller string, state State) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	switch state {
	case StateVisible:
		s.revealVotes()
	case StateVoting, StateClean:
		s.clearVotes()
	default:
		return apperr.BadRequest("can not set session to state %q", state.String())
	}
	s.State = state
	return nil
}

func (s *Session) revealVotes() {
	for _, m := range s.Members {
		m.Revealed = m.Vote != nil
	}
}

func (s *Session) clearVotes() {
	for _, m := range s.Members {
		m.Vote = nil
		m.Revealed = false
	}
}
