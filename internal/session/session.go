package session

import (
	"strings"
	"time"
)

// Draft holds the form values between interactions.
type Draft struct {
	Exercise string  `json:"exercise"`
	Weight   float64 `json:"weight"`
	Reps     int     `json:"reps"`
	Sets     int     `json:"sets"`
}

func DefaultDraft() Draft {
	return Draft{
		Exercise: "",
		Weight:   0,
		Reps:     1,
		Sets:     1,
	}
}

// Session is the per-session view model. It is passed explicitly to every
// operation that needs it, nothing about it is global.
//
// JustLogged is set after a successful create and consumed by the next
// Render, which resets the draft exactly once.
type Session struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	Admin      bool      `json:"admin"`
	Draft      Draft     `json:"draft"`
	JustLogged bool      `json:"justLogged"`
	CreatedAt  time.Time `json:"createdAt"`
}

func New(id string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		Draft:     DefaultDraft(),
		CreatedAt: createdAt,
	}
}

// EditDraft replaces the draft values. The just-logged flag is left alone.
func (s *Session) EditDraft(d Draft) {
	s.Draft = d
}

// MarkLogged records a successful create. The draft is kept until the next Render.
func (s *Session) MarkLogged() {
	s.JustLogged = true
}

// Render returns the draft to show. Right after a create it first resets the
// draft to defaults and clears the flag.
func (s *Session) Render() Draft {
	if s.JustLogged {
		s.Draft = DefaultDraft()
		s.JustLogged = false
	}
	return s.Draft
}

// SelectUser switches the session to name. A different user starts from a
// clean draft, so a pending reset never leaks across users. It reports
// whether the user changed.
func (s *Session) SelectUser(name string) bool {
	name = strings.TrimSpace(name)
	if name == s.User {
		return false
	}
	s.User = name
	s.Draft = DefaultDraft()
	s.JustLogged = false
	return true
}

// ResolveUser picks the name typed into the free text field when given,
// otherwise the one chosen in the picker.
func ResolveUser(selected, typed string) string {
	if typed = strings.TrimSpace(typed); typed != "" {
		return typed
	}
	return strings.TrimSpace(selected)
}

// ResolveExercise prefers the typed exercise name. The picked previous
// exercise is used only when nothing was typed.
func ResolveExercise(typed, picked string) string {
	if typed = strings.TrimSpace(typed); typed != "" {
		return typed
	}
	return strings.TrimSpace(picked)
}
