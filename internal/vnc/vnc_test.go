package vnc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/internal/vnc"
	"github.com/frahmantamala/opsboard/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestVNC(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "VNC Suite")
}

type fakeLauncher struct {
	mu    sync.Mutex
	hosts []string
	err   error
}

func (f *fakeLauncher) Launch(_ context.Context, hostname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.hosts = append(f.hosts, hostname)
	return nil
}

type recordedEvent struct {
	source, severity, host, message string
}

type fakeRecorder struct {
	events []recordedEvent
}

func (f *fakeRecorder) Record(_ context.Context, source, severity, hostName, message string) {
	f.events = append(f.events, recordedEvent{source, severity, hostName, message})
}

var _ = Describe("ValidHostname", func() {
	DescribeTable("accepts letters, digits, dots and dashes only",
		func(name string, ok bool) {
			Expect(vnc.ValidHostname(name)).To(Equal(ok))
		},
		Entry("workstation", "KS-TEST-01", true),
		Entry("terminal", "KT-TERM-05", true),
		Entry("fqdn", "workstation.domain.com", true),
		Entry("ip", "10.0.0.5", true),
		Entry("empty", "", false),
		Entry("shell", "host;rm -rf /", false),
		Entry("option injection", "-listen", false),
		Entry("space", "KS 01", false),
	)
})

var _ = Describe("ExecLauncher", func() {
	It("builds the connect command line", func() {
		l := vnc.NewExecLauncher(internal.VNCConfig{Viewer: "vncviewer"}, logger.Discard())
		Expect(l.Args("KS-01")).To(Equal([]string{"-connect", "KS-01"}))

		l = vnc.NewExecLauncher(internal.VNCConfig{Viewer: "vncviewer", Password: "s3cret"}, logger.Discard())
		Expect(l.Args("KS-01")).To(Equal([]string{"-connect", "KS-01", "-password", "s3cret"}))
	})

	It("fails when the viewer binary does not exist", func() {
		l := vnc.NewExecLauncher(internal.VNCConfig{Viewer: "/nonexistent/vncviewer"}, logger.Discard())
		Expect(l.Launch(context.Background(), "KS-01")).To(HaveOccurred())
	})
})

var _ = Describe("Handler", func() {
	var (
		launcher *fakeLauncher
		recorder *fakeRecorder
		h        *vnc.Handler
		user     = &internal.Principal{UserID: 1, Username: "jan", Role: "user"}
	)

	BeforeEach(func() {
		launcher = &fakeLauncher{}
		recorder = &fakeRecorder{}
		svc := vnc.NewService(launcher, recorder, logger.Discard())
		h = vnc.NewHandler(transport.NewBaseHandler(logger.Discard()), svc)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/vnc/connect", strings.NewReader(body))
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), user))
		rec := httptest.NewRecorder()
		h.Connect(rec, req)
		return rec
	}

	It("launches the viewer for a valid host", func() {
		rec := post(`{"hostname":"KS-TEST-01"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"status":"success"`))
		Expect(rec.Body.String()).To(ContainSubstring("KS-TEST-01"))
		Expect(launcher.hosts).To(Equal([]string{"KS-TEST-01"}))
	})

	It("requires a hostname", func() {
		for _, body := range []string{`{}`, `{"hostname":""}`} {
			rec := post(body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("No hostname provided"))
		}
		Expect(launcher.hosts).To(BeEmpty())
	})

	It("refuses hostnames that could reach the shell", func() {
		rec := post(`{"hostname":"KS-01 && calc.exe"}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(launcher.hosts).To(BeEmpty())
	})

	It("reports a viewer that fails to start", func() {
		launcher.err = errors.New("exec: not found")
		rec := post(`{"hostname":"KS-TEST-01"}`)
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("Failed to start VNC viewer"))
		Expect(recorder.events).To(HaveLen(1))
		Expect(recorder.events[0].source).To(Equal("vnc"))
		Expect(recorder.events[0].host).To(Equal("KS-TEST-01"))
	})

	It("rejects a malformed body", func() {
		rec := post(`invalid json`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
