package directory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/directory"
	"github.com/frahmantamala/opsboard/pkg/logger"
	"github.com/go-ldap/ldap/v3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDirectory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Directory Suite")
}

type fakeConn struct {
	dir    *fakeDirectory
	closed bool
}

func (c *fakeConn) NTLMBind(domain, username, password string) error {
	c.dir.ntlmCalls++
	if c.dir.ntlmOK && c.dir.passwords[username] == password {
		return nil
	}
	return errors.New("ntlm: rejected")
}

func (c *fakeConn) Bind(username, password string) error {
	c.dir.simpleBinds = append(c.dir.simpleBinds, username)
	if c.dir.passwords[username] == password {
		return nil
	}
	return errors.New("invalid credentials")
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.dir.filters = append(c.dir.filters, req.Filter)
	if c.dir.searchErr != nil {
		return nil, c.dir.searchErr
	}
	return &ldap.SearchResult{Entries: c.dir.entries}, nil
}

func (c *fakeConn) Close() { c.closed = true }

type fakeDirectory struct {
	ntlmOK      bool
	passwords   map[string]string
	entries     []*ldap.Entry
	searchErr   error
	dialErr     error
	ntlmCalls   int
	simpleBinds []string
	filters     []string
	conns       []*fakeConn
}

func (d *fakeDirectory) dial(ctx context.Context) (directory.Conn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := &fakeConn{dir: d}
	d.conns = append(d.conns, c)
	return c, nil
}

var _ = Describe("Authenticator", func() {
	var (
		dir  *fakeDirectory
		auth *directory.Authenticator
		cfg  internal.DirectoryConfig
	)

	BeforeEach(func() {
		cfg = internal.DirectoryConfig{
			Host:            "dc.example.local",
			Port:            389,
			BaseDN:          "DC=example,DC=local",
			Domain:          "example.local",
			ServiceUser:     "svc_dashboard",
			ServicePassword: "svc-secret",
		}
		dir = &fakeDirectory{
			passwords: map[string]string{
				"jkowalski":                  "pass1",
				"jkowalski@example.local":    "pass1",
				"svc_dashboard@example.local": "svc-secret",
			},
			entries: []*ldap.Entry{
				ldap.NewEntry("CN=Jan Kowalski,DC=example,DC=local", map[string][]string{
					"displayName": {"Jan Kowalski"},
					"mail":        {"jan.kowalski@example.local"},
					"department":  {"IT"},
					"title":       {"Administrator"},
				}),
			},
		}
		auth = directory.NewAuthenticatorWithDialer(cfg, dir.dial, logger.Discard())
	})

	It("authenticates with an ntlm bind and reads the profile", func() {
		dir.ntlmOK = true

		profile, ok := auth.Authenticate(context.Background(), "jkowalski", "pass1")
		Expect(ok).To(BeTrue())
		Expect(profile.DisplayName).To(Equal("Jan Kowalski"))
		Expect(profile.Email).To(Equal("jan.kowalski@example.local"))
		Expect(profile.Department).To(Equal("IT"))
		Expect(dir.simpleBinds).To(Equal([]string{"svc_dashboard@example.local"}))
		Expect(dir.filters).To(Equal([]string{"(sAMAccountName=jkowalski)"}))
	})

	It("falls back to a simple bind with user@domain", func() {
		profile, ok := auth.Authenticate(context.Background(), "jkowalski", "pass1")
		Expect(ok).To(BeTrue())
		Expect(dir.ntlmCalls).To(Equal(1))
		Expect(dir.simpleBinds[0]).To(Equal("jkowalski@example.local"))
		Expect(profile.Title).To(Equal("Administrator"))
	})

	It("rejects when both binds fail", func() {
		_, ok := auth.Authenticate(context.Background(), "jkowalski", "wrong")
		Expect(ok).To(BeFalse())
		Expect(dir.filters).To(BeEmpty())
	})

	It("rejects empty passwords without contacting the directory", func() {
		_, ok := auth.Authenticate(context.Background(), "jkowalski", "")
		Expect(ok).To(BeFalse())
		Expect(dir.conns).To(BeEmpty())
	})

	It("returns the username as display name when the profile lookup fails", func() {
		dir.searchErr = errors.New("size limit exceeded")

		profile, ok := auth.Authenticate(context.Background(), "jkowalski", "pass1")
		Expect(ok).To(BeTrue())
		Expect(profile.DisplayName).To(Equal("jkowalski"))
		Expect(profile.Email).To(BeEmpty())
	})

	It("escapes the username in the search filter", func() {
		dir.passwords["a*b"] = "x"
		dir.ntlmOK = true

		_, ok := auth.Authenticate(context.Background(), "a*b", "x")
		Expect(ok).To(BeTrue())
		Expect(dir.filters[0]).To(Equal(`(sAMAccountName=a\2ab)`))
	})

	It("treats an unreachable directory as not authenticated", func() {
		dir.dialErr = errors.New("connection refused")
		_, ok := auth.Authenticate(context.Background(), "jkowalski", "pass1")
		Expect(ok).To(BeFalse())
	})

	It("closes every connection it opens", func() {
		dir.ntlmOK = true
		auth.Authenticate(context.Background(), "jkowalski", "pass1")
		Expect(dir.conns).To(HaveLen(2))
		for _, c := range dir.conns {
			Expect(c.closed).To(BeTrue())
		}
	})
})
