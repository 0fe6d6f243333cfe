package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/2beens/workoutlog/pkg"
)

var ErrWrongCredentials = errors.New("wrong credentials")

// Admin holds the only credentials able to switch a session into the admin role.
type Admin struct {
	Username     string
	PasswordHash string
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *Admin) Verify(c Credentials) error {
	if a == nil || a.Username == "" || a.PasswordHash == "" {
		return ErrWrongCredentials
	}
	username := strings.TrimSpace(c.Username)
	// password is checked even on a username mismatch, so both paths take the bcrypt time
	passwordOk := pkg.CheckPasswordHash(c.Password, a.PasswordHash)
	usernameOk := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
	if !passwordOk || !usernameOk {
		return ErrWrongCredentials
	}
	return nil
}
