package logs_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	logsDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	eventlogPostgres "github.com/frahmantamala/opsboard/internal/eventlog/postgres"
	"github.com/frahmantamala/opsboard/internal/logs"
	"github.com/frahmantamala/opsboard/internal/logs/postgres"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/store/storetest"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLogs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logs Suite")
}

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func hit(text, ts string) string {
	inner, _ := json.Marshal(text)
	return fmt.Sprintf(`{"message":{"message":%s,"timestamp":%q}}`, inner, ts)
}

// graylogServer serves total messages, paginated by the offset parameter.
type graylogServer struct {
	*httptest.Server
	calls atomic.Int32
	fail  atomic.Bool
	total int
	user  string
	// hold, when set, blocks every request until it is closed.
	hold chan struct{}
}

func newGraylogServer(total int) *graylogServer {
	g := &graylogServer{total: total}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.calls.Add(1)
		if g.hold != nil {
			<-g.hold
		}
		g.user, _, _ = r.BasicAuth()
		if g.fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var items []string
		for i := offset; i < g.total && i < offset+limit; i++ {
			ts := base.Add(time.Duration(i) * time.Second).Format("2006-01-02T15:04:05.000Z")
			items = append(items, hit(fmt.Sprintf(`4242 - {"type":"INFO","formsDbSessionId":"S%d","message":"request %d served"}`, i, i), ts))
		}
		body := `{"messages":[`
		for i, it := range items {
			if i > 0 {
				body += ","
			}
			body += it
		}
		body += `]}`
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	return g
}

var _ = Describe("ParseMessage", func() {
	It("extracts the structured tail of a pid payload", func() {
		raw := json.RawMessage(`{"message":"1234 - {\"formsSessionName\":\"SESS\",\"formsFormName\":\"F01\",\"formsDbSessionId\":991,\"formsUsername\":\"jan\",\"callSite\":\"a.b\",\"thread\":\"t-1\",\"type\":\"WARN\",\"message\":\"  slow query  \"}"}`)
		p := logs.ParseMessage(raw)
		Expect(p.ProcessID).To(Equal("1234"))
		Expect(p.SessionName).To(Equal("SESS"))
		Expect(p.DBSessionID).To(Equal("991"))
		Expect(p.Type).To(Equal("WARN"))
		Expect(p.Message).To(Equal("slow query"))
		Expect(p.Details()).To(HaveKeyWithValue("formsusername", "jan"))
		Expect(p.Details()).NotTo(HaveKey("message"))
	})

	It("accepts a document encoded as a string", func() {
		raw, _ := json.Marshal(`{"message":"77 - {\"message\":\"ok\"}"}`)
		p := logs.ParseMessage(raw)
		Expect(p.ProcessID).To(Equal("77"))
		Expect(p.Type).To(Equal("INFO"))
		Expect(p.Message).To(Equal("ok"))
	})

	It("keeps the raw text when there is no structured tail", func() {
		Expect(logs.ParseMessage(json.RawMessage(`{"message":"plain line"}`)).Message).To(Equal("plain line"))
		Expect(logs.ParseMessage(json.RawMessage(`{"message":"a - {broken"}`)).Message).To(Equal("a - {broken"))
		Expect(logs.ParseMessage(json.RawMessage(`"not json"`)).Message).To(Equal("not json"))
	})
})

var _ = Describe("Classification", func() {
	DescribeTable("severity",
		func(level, text, want string) {
			Expect(logs.Classify(level, text)).To(Equal(want))
		},
		Entry("error level", "ERROR", "all good", logs.SeverityHigh),
		Entry("error text", "INFO", "Database Error occurred", logs.SeverityHigh),
		Entry("warn level", "WARN", "x", logs.SeverityMedium),
		Entry("warning text", "INFO", "a Warning", logs.SeverityMedium),
		Entry("plain", "INFO", "hello", logs.SeverityLow),
	)

	DescribeTable("category, first match wins",
		func(text, want string) {
			Expect(logs.Categorize(text)).To(Equal(want))
		},
		Entry("error beats denied", "error: access denied", logs.CategorySystemError),
		Entry("security", "Forbidden resource", logs.CategorySecurityAlert),
		Entry("performance", "request timeout", logs.CategoryPerformance),
		Entry("service", "service started", logs.CategoryServiceStatus),
		Entry("fallback", "hello", logs.CategoryGeneralWarning),
	)

	It("maps severities onto system event severities", func() {
		Expect(logs.EventSeverity(logs.SeverityHigh)).To(Equal("critical"))
		Expect(logs.EventSeverity(logs.SeverityMedium)).To(Equal("warning"))
		Expect(logs.EventSeverity(logs.SeverityLow)).To(Equal("info"))
	})

	It("normalizes timestamps to milliseconds and falls back to now", func() {
		ts := logs.NormalizeTimestamp("2024-05-01T10:00:00.123456Z", base)
		Expect(ts).To(BeTemporally("==", time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC)))
		Expect(logs.NormalizeTimestamp("garbage", base)).To(BeTemporally("==", base))
	})

	It("sorts by time then severity", func() {
		msgs := []logs.Message{
			{Timestamp: base.Add(time.Second), Severity: logs.SeverityHigh, Text: "c"},
			{Timestamp: base, Severity: logs.SeverityLow, Text: "b"},
			{Timestamp: base, Severity: logs.SeverityHigh, Text: "a"},
		}
		logs.SortMessages(msgs)
		Expect([]string{msgs[0].Text, msgs[1].Text, msgs[2].Text}).To(Equal([]string{"a", "b", "c"}))
	})

	It("serializes the display timestamp", func() {
		b, err := json.Marshal(logs.Message{Timestamp: base.Add(5 * time.Millisecond), Text: "x", Details: map[string]string{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(ContainSubstring(`"timestamp":"2024-05-01 10:00:00.005"`))
		Expect(string(b)).To(ContainSubstring(`"message":"x"`))
	})
})

var _ = Describe("Buffer", func() {
	var (
		buf *logs.Buffer
		now time.Time
	)

	BeforeEach(func() {
		now = base
		buf = logs.NewBuffer(24*time.Hour, logger.Discard())
		buf.SetClock(func() time.Time { return now })
	})

	It("returns entries until they expire", func() {
		p := &logs.Payload{TotalResults: 1}
		buf.Add(60, p)
		got, ok := buf.Get(60)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(p))

		now = base.Add(24 * time.Hour)
		_, ok = buf.Get(60)
		Expect(ok).To(BeFalse())
		Expect(buf.Len()).To(Equal(0))
		Expect(buf.Latest()).To(BeIdenticalTo(p))
		Expect(buf.LastRefresh()).To(Equal(base))
	})

	It("sweeps only expired entries", func() {
		buf.Add(5, &logs.Payload{})
		now = base.Add(23 * time.Hour)
		buf.Add(60, &logs.Payload{})
		now = base.Add(24*time.Hour + time.Minute)
		Expect(buf.Sweep()).To(Equal(1))
		Expect(buf.Len()).To(Equal(1))
	})

	It("stops the sweeper with its context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			buf.Run(ctx, time.Millisecond)
			close(done)
		}()
		cancel()
		Eventually(done).Should(BeClosed())
	})
})

var _ = Describe("Timeline", func() {
	It("yields a dense series of ceil(span/step)+1 rows", func() {
		for _, name := range []string{"1 minutes", "2 minutes", "5 minutes", "10 minutes", "15 minutes", "30 minutes", "60 minutes"} {
			b, ok := logs.ParseBucket(name)
			Expect(ok).To(BeTrue())
			for _, span := range []time.Duration{0, 7 * time.Minute, 2 * time.Hour, 125 * time.Minute} {
				starts := logs.BucketStarts(base, base.Add(span), b)
				want := int((span+b.Step-1)/b.Step) + 1
				Expect(starts).To(HaveLen(want), "%s over %s", name, span)
			}
		}
	})

	It("aligns daily buckets to midnight", func() {
		b, _ := logs.ParseBucket("1 day")
		starts := logs.BucketStarts(base, base.Add(48*time.Hour), b)
		Expect(starts).To(HaveLen(3))
		Expect(starts[0]).To(BeTemporally("==", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
		rows := logs.Histogram(starts, b, []logs.SeverityPoint{{Timestamp: base, Severity: logs.SeverityHigh}})
		Expect(rows[0].TimeInterval).To(Equal("2024-05-01"))
		Expect(rows[0].HighCount).To(Equal(1))
	})

	It("rejects unknown buckets", func() {
		_, ok := logs.ParseBucket("7 minutes")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Service", func() {
	var (
		s       *store.Store
		graylog *graylogServer
		buf     *logs.Buffer
		svc     *logs.Service
		repo    logs.RepositoryAPI
		now     time.Time
		ctx     context.Context
	)

	systemLogs := func(source string) []*logsDatamodel.SystemLog {
		var rows []*logsDatamodel.SystemLog
		Expect(s.Gorm.Where("source = ?", source).Order("id ASC").Find(&rows).Error).To(Succeed())
		return rows
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = base.Add(time.Hour)
		s = storetest.MustOpen()
		graylog = newGraylogServer(2)
		buf = logs.NewBuffer(24*time.Hour, logger.Discard())
		buf.SetClock(func() time.Time { return now })
		repo = postgres.NewLogRepository(s.Gorm)
		client := logs.NewClient(internal.LogsConfig{URL: graylog.URL, Username: "reader", Password: "pw", Timeout: time.Second}, logger.Discard())
		events := eventlog.NewService(eventlogPostgres.NewEventLogRepository(s.Gorm), logger.Discard())
		svc = logs.NewService(client, repo, events, buf, logs.Options{}, logger.Discard())
	})

	AfterEach(func() {
		graylog.Close()
	})

	It("fetches, stores and buffers a batch", func() {
		res := svc.Fetch(ctx, 60, false, i18n.PL)
		Expect(res.IsOK()).To(BeTrue())
		p := res.Payload
		Expect(p.TotalResults).To(Equal(2))
		Expect(p.TimeRange).To(Equal("Ostatnie 60 minut"))
		Expect(p.Language).To(Equal("pl"))
		Expect(p.QueryTime).To(Equal("2024-05-01 11:00:00"))
		Expect(p.Stats.InfoCount).To(Equal(2))
		Expect(p.Logs[0].Text).To(Equal("request 0 served"))
		Expect(p.Logs[0].Details).To(HaveKeyWithValue("process_id", "4242"))
		Expect(graylog.user).To(Equal("reader"))

		var stored []logsDatamodel.LogMessage
		Expect(s.Gorm.Find(&stored).Error).To(Succeed())
		Expect(stored).To(HaveLen(2))

		events := systemLogs(eventlog.SourceGraylog)
		Expect(events).To(HaveLen(2))
		Expect(events[0].Severity).To(Equal("info"))
		Expect(events[0].HostName).To(Equal("S0"))
	})

	It("serves the buffer inside the minimum interval", func() {
		Expect(svc.Fetch(ctx, 60, false, i18n.EN).IsOK()).To(BeTrue())
		now = now.Add(60 * time.Second)

		second := svc.Fetch(ctx, 60, false, i18n.EN)
		Expect(second.IsOK()).To(BeTrue())
		Expect(graylog.calls.Load()).To(Equal(int32(1)))

		other := svc.Fetch(ctx, 30, false, i18n.EN)
		Expect(other.Payload).To(BeIdenticalTo(second.Payload))
		Expect(graylog.calls.Load()).To(Equal(int32(1)))

		now = now.Add(300 * time.Second)
		Expect(svc.Fetch(ctx, 30, false, i18n.EN).Payload.TimeRange).To(Equal("Last 30 minutes"))
		Expect(graylog.calls.Load()).To(Equal(int32(2)))

		Expect(svc.Fetch(ctx, 30, true, i18n.EN).IsOK()).To(BeTrue())
		Expect(graylog.calls.Load()).To(Equal(int32(3)))
	})

	It("pages until the message cap", func() {
		graylog.total = 1000
		res := svc.Fetch(ctx, 60, false, i18n.EN)
		Expect(res.Payload.TotalResults).To(Equal(300))
		Expect(graylog.calls.Load()).To(Equal(int32(2)))
	})

	It("reports upstream failures and keeps the buffer", func() {
		Expect(svc.Fetch(ctx, 60, false, i18n.PL).IsOK()).To(BeTrue())
		graylog.fail.Store(true)

		res := svc.Fetch(ctx, 60, true, i18n.PL)
		Expect(res.IsErr()).To(BeTrue())
		Expect(res.Reason).To(ContainSubstring("502"))

		var errs []*logsDatamodel.SystemLog
		for _, e := range systemLogs(eventlog.SourceGraylog) {
			if e.Severity == "error" {
				errs = append(errs, e)
			}
		}
		Expect(errs).To(HaveLen(1))
		Expect(errs[0].HostName).To(Equal("system"))
		Expect(errs[0].Message).To(HavePrefix("Błąd podczas pobierania logów"))

		Expect(svc.Fetch(ctx, 60, false, i18n.PL).IsOK()).To(BeTrue())
	})

	It("finishes a shared fetch after its first caller goes away", func() {
		graylog.hold = make(chan struct{})
		callerCtx, cancel := context.WithCancel(ctx)

		done := make(chan bool, 1)
		go func() {
			done <- svc.Fetch(callerCtx, 60, true, i18n.EN).IsErr()
		}()
		Eventually(graylog.calls.Load).Should(Equal(int32(1)))

		cancel()
		Eventually(done).Should(Receive(BeTrue()))

		close(graylog.hold)
		Eventually(func() bool {
			_, ok := buf.Get(60)
			return ok
		}).Should(BeTrue())
		Expect(graylog.calls.Load()).To(Equal(int32(1)))
	})

	It("upserts messages idempotently", func() {
		row := func(level, severity string) *logsDatamodel.LogMessage {
			return &logsDatamodel.LogMessage{Timestamp: base, MessageHash: logs.Hash("x"), Level: level, Severity: severity, Category: "General Warning", Message: "x"}
		}
		Expect(repo.Upsert(ctx, []*logsDatamodel.LogMessage{row("INFO", "low")})).To(Succeed())
		Expect(repo.Upsert(ctx, []*logsDatamodel.LogMessage{row("ERROR", "high")})).To(Succeed())

		var stored []logsDatamodel.LogMessage
		Expect(s.Gorm.Find(&stored).Error).To(Succeed())
		Expect(stored).To(HaveLen(1))
		Expect(stored[0].Severity).To(Equal("high"))
		Expect(stored[0].Level).To(Equal("ERROR"))
	})

	Context("with stored messages", func() {
		BeforeEach(func() {
			var rows []*logsDatamodel.LogMessage
			add := func(at time.Time, text, severity string) {
				rows = append(rows, &logsDatamodel.LogMessage{Timestamp: at, MessageHash: logs.Hash(text), Level: "INFO", Severity: severity, Message: text})
			}
			add(base, "a", logs.SeverityHigh)
			add(base, "b", logs.SeverityLow)
			add(base, "c", logs.SeverityLow)
			add(base.Add(5*time.Minute), "d", logs.SeverityMedium)
			add(base.Add(5*time.Minute), "e", logs.SeverityLow)
			Expect(repo.Upsert(ctx, rows)).To(Succeed())
		})

		It("buckets messages densely", func() {
			b, _ := logs.ParseBucket("5 minutes")
			rows, err := svc.Timeline(ctx, base, base.Add(10*time.Minute), b)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0]).To(Equal(logs.TimelineRow{TimeInterval: "2024-05-01 10:00", HighCount: 1, LowCount: 2, TotalCount: 3}))
			Expect(rows[1]).To(Equal(logs.TimelineRow{TimeInterval: "2024-05-01 10:05", MediumCount: 1, LowCount: 1, TotalCount: 2}))
			Expect(rows[2]).To(Equal(logs.TimelineRow{TimeInterval: "2024-05-01 10:10"}))
		})

		It("rejects an inverted range", func() {
			b, _ := logs.ParseBucket("5 minutes")
			_, err := svc.Timeline(ctx, base, base.Add(-time.Minute), b)
			Expect(err).To(HaveOccurred())
		})

		It("lists messages newest first with whole-range stats", func() {
			page, err := svc.Messages(ctx, base, base.Add(time.Hour), 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Messages).To(HaveLen(2))
			Expect(page.Messages[0].Timestamp).To(BeTemporally("==", base.Add(5*time.Minute)))
			Expect(page.Messages[0].Text).To(Equal("d"))
			Expect(page.Messages[1].Text).To(Equal("e"))
			Expect(page.TotalResults).To(Equal(5))
			Expect(page.TotalInDB).To(Equal(5))
			Expect(page.Stats).To(Equal(logs.MessageStats{ErrorCount: 1, WarnCount: 1, InfoCount: 3, TotalCount: 5}))
		})

		It("breaks timestamp ties by severity and reports the unlimited count", func() {
			page, err := svc.Messages(ctx, base, base.Add(time.Minute), 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Messages).To(HaveLen(1))
			Expect(page.Messages[0].Severity).To(Equal(logs.SeverityHigh))
			Expect(page.Messages[0].Text).To(Equal("a"))

			raw, err := json.Marshal(page)
			Expect(err).NotTo(HaveOccurred())
			var body map[string]json.RawMessage
			Expect(json.Unmarshal(raw, &body)).To(Succeed())
			Expect(string(body["total_in_db"])).To(Equal("3"))
			Expect(string(body["total_results"])).To(Equal("3"))
		})
	})
})

type fakeGate struct{ allowed bool }

func (g fakeGate) Allowed(*http.Request, string) bool { return g.allowed }

func (g fakeGate) Forbidden(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusForbidden)
}

var _ = Describe("Handler", func() {
	var (
		graylog *graylogServer
		svc     *logs.Service
	)

	BeforeEach(func() {
		s := storetest.MustOpen()
		graylog = newGraylogServer(1)
		client := logs.NewClient(internal.LogsConfig{URL: graylog.URL, Timeout: time.Second}, logger.Discard())
		events := eventlog.NewService(eventlogPostgres.NewEventLogRepository(s.Gorm), logger.Discard())
		svc = logs.NewService(client, postgres.NewLogRepository(s.Gorm), events, logs.NewBuffer(time.Hour, logger.Discard()), logs.Options{}, logger.Discard())
	})

	AfterEach(func() {
		graylog.Close()
	})

	It("requires refresh_data for a forced fetch", func() {
		h := logs.NewHandler(transport.NewBaseHandler(logger.Discard()), svc, fakeGate{allowed: false})
		rec := httptest.NewRecorder()
		h.GetLogs(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?range=60&force=true", nil))
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(graylog.calls.Load()).To(BeZero())

		rec = httptest.NewRecorder()
		h.GetLogs(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?range=60", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		var p logs.Payload
		Expect(json.Unmarshal(rec.Body.Bytes(), &p)).To(Succeed())
		Expect(p.TotalResults).To(Equal(1))
	})

	It("writes the error shape when graylog fails", func() {
		graylog.fail.Store(true)
		h := logs.NewHandler(transport.NewBaseHandler(logger.Discard()), svc, fakeGate{allowed: true})
		rec := httptest.NewRecorder()
		h.GetLogs(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs?range=5&force=1", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		var body map[string]string
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["error"]).NotTo(BeEmpty())
	})

	It("validates the timeline interval", func() {
		h := logs.NewHandler(transport.NewBaseHandler(logger.Discard()), svc, fakeGate{allowed: true})
		rec := httptest.NewRecorder()
		h.GetTimeline(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs/timeline?interval=7+minutes", nil))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = httptest.NewRecorder()
		h.GetTimeline(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs/timeline?interval=5+minutes&start=2024-05-01T10:00:00Z&end=2024-05-01T10:10:00Z", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		var body struct {
			Timeline []logs.TimelineRow `json:"timeline"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Timeline).To(HaveLen(3))
	})
})
