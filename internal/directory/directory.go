// Package directory verifies operator credentials against the LDAP directory
// and reads their display profile.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/metrics"
	"github.com/go-ldap/ldap/v3"
)

var profileAttributes = []string{"displayName", "mail", "department", "title"}

type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	Title       string `json:"title"`
}

// Conn is the subset of an LDAP connection the authenticator uses.
type Conn interface {
	NTLMBind(domain, username, password string) error
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

type Dialer func(ctx context.Context) (Conn, error)

// AuthenticatorAPI is what the login flow depends on.
type AuthenticatorAPI interface {
	Authenticate(ctx context.Context, username, password string) (*Profile, bool)
}

type Authenticator struct {
	cfg    internal.DirectoryConfig
	dial   Dialer
	logger *slog.Logger
}

var _ AuthenticatorAPI = (*Authenticator)(nil)

func NewAuthenticator(cfg internal.DirectoryConfig, logger *slog.Logger) *Authenticator {
	return NewAuthenticatorWithDialer(cfg, TCPDialer(cfg), logger)
}

func NewAuthenticatorWithDialer(cfg internal.DirectoryConfig, dial Dialer, logger *slog.Logger) *Authenticator {
	return &Authenticator{cfg: cfg, dial: dial, logger: logger}
}

type ldapConn struct {
	*ldap.Conn
}

func (c ldapConn) Close() { c.Conn.Close() }

// TCPDialer connects to ldap://host:port with the configured timeout.
func TCPDialer(cfg internal.DirectoryConfig) Dialer {
	return func(ctx context.Context) (Conn, error) {
		url := fmt.Sprintf("ldap://%s:%d", cfg.Host, cfg.Port)
		conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}))
		if err != nil {
			return nil, err
		}
		conn.SetTimeout(cfg.Timeout)
		return ldapConn{Conn: conn}, nil
	}
}

// Authenticate binds with the user's credentials, NTLM first and simple
// user@domain second. On success it reads the profile with the service
// account; a failed profile read still authenticates the user.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*Profile, bool) {
	username = strings.TrimSpace(username)
	// an empty password would be an anonymous bind
	if username == "" || password == "" {
		return nil, false
	}

	start := time.Now()
	err := a.bindUser(ctx, username, password)
	metrics.ObserveUpstream("ldap", start, err)
	if err != nil {
		a.logger.Warn("directory bind rejected", "username", username, "error", err)
		return nil, false
	}

	profile, err := a.fetchProfile(ctx, username)
	if err != nil {
		a.logger.Warn("directory profile lookup failed", "username", username, "error", err)
		return &Profile{Username: username, DisplayName: username}, true
	}
	return profile, true
}

func (a *Authenticator) bindUser(ctx context.Context, username, password string) error {
	conn, err := a.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial directory: %w", err)
	}
	defer conn.Close()

	ntlmErr := conn.NTLMBind(a.cfg.Domain, username, password)
	if ntlmErr == nil {
		return nil
	}
	a.logger.Debug("ntlm bind failed, trying simple bind", "username", username, "error", ntlmErr)

	if err := conn.Bind(a.qualify(username), password); err != nil {
		return fmt.Errorf("ntlm bind: %v; simple bind: %w", ntlmErr, err)
	}
	return nil
}

func (a *Authenticator) fetchProfile(ctx context.Context, username string) (*Profile, error) {
	conn, err := a.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial directory: %w", err)
	}
	defer conn.Close()

	if err := conn.Bind(a.qualify(a.cfg.ServiceUser), a.cfg.ServicePassword); err != nil {
		return nil, fmt.Errorf("service bind: %w", err)
	}

	req := ldap.NewSearchRequest(
		a.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(a.cfg.Timeout.Seconds()), false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username)),
		profileAttributes,
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("no directory entry for %s", username)
	}

	entry := res.Entries[0]
	profile := &Profile{
		Username:    username,
		DisplayName: entry.GetAttributeValue("displayName"),
		Email:       entry.GetAttributeValue("mail"),
		Department:  entry.GetAttributeValue("department"),
		Title:       entry.GetAttributeValue("title"),
	}
	if profile.DisplayName == "" {
		profile.DisplayName = username
	}
	return profile, nil
}

// qualify turns a bare account name into user@domain.
func (a *Authenticator) qualify(name string) string {
	if strings.ContainsAny(name, `@\`) || strings.Contains(name, "=") {
		return name
	}
	return name + "@" + a.cfg.Domain
}
