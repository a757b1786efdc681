package estimate

// MemberView is a member as presented to readers.
type MemberView struct {
	UserID     string    `json:"user_id"`
	Nickname   string    `json:"nickname"`
	VoteAmount *uint32   `json:"vote_amount"`
	VoteState  VoteState `json:"vote_state"`
}

// View is the public snapshot of a session.
type View struct {
	SessionID string       `json:"session_id"`
	State     State        `json:"state"`
	Users     []MemberView `json:"users"`
	Admins    []string     `json:"admins"`
	Average   *float64     `json:"average"`
}

// View projects the stored session into what readers see. Cast votes are
// Hidden with no amount until they have been revealed.
func (s *Session) View() *View {
	v := &View{
		SessionID: s.ID,
		State:     s.State,
		Users:     make([]MemberView, 0, len(s.Members)),
		Admins:    append([]string{}, s.Admins...),
	}

	var sum float64
	var count int
	for _, m := range s.Members {
		mv := MemberView{UserID: m.UserID, Nickname: m.Nickname, VoteState: VoteEmpty}
		switch {
		case m.Vote == nil:
		case m.Revealed:
			amount := *m.Vote
			mv.VoteState = VoteVisible
			mv.VoteAmount = &amount
			sum += float64(amount)
			count++
		default:
			mv.VoteState = VoteHidden
		}
		v.Users = append(v.Users, mv)
	}
	if count > 0 {
		avg := sum / float64(count)
		v.Average = &avg
	}
	return v
}
