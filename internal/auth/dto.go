package auth

import (
	"strings"

	"github.com/frahmantamala/opsboard/internal"
)

// LoginDTO is accepted as JSON or as a form post.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Next     string `json:"next,omitempty"`
}

func (d *LoginDTO) Normalize() {
	d.Username = strings.TrimSpace(d.Username)
	d.Next = strings.TrimSpace(d.Next)
}

func (d LoginDTO) Validate() error {
	if d.Username == "" || d.Password == "" {
		return internal.NewValidationError("missing_credentials", internal.ErrCodeValidationFailed)
	}
	return nil
}

// SafeNext returns next when it is a local absolute path, otherwise "/".
func (d LoginDTO) SafeNext() string {
	if strings.HasPrefix(d.Next, "/") && !strings.HasPrefix(d.Next, "//") && !strings.Contains(d.Next, `\`) {
		return d.Next
	}
	return "/"
}

type LoginResponse struct {
	Status    string              `json:"status"`
	User      *internal.Principal `json:"user"`
	Redirect  string              `json:"redirect"`
	ExpiresAt int64               `json:"expires_at"`
}
