package monitoring_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	monitoringDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/monitoring"
	logsDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	eventlogPostgres "github.com/frahmantamala/opsboard/internal/eventlog/postgres"
	"github.com/frahmantamala/opsboard/internal/monitoring"
	"github.com/frahmantamala/opsboard/internal/monitoring/postgres"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/store/storetest"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/frahmantamala/opsboard/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMonitoring(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Monitoring Suite")
}

const oneHost = `[{
	"hostid": "10084",
	"name": "srv-app-01",
	"status": "0",
	"interfaces": [{"ip": "10.0.0.10", "type": "1", "available": "1"}],
	"items": [{"name": "CPU", "key_": "system.cpu.util", "lastvalue": "25.5", "units": "%"}],
	"triggers": [{"triggerid": "1", "description": "High CPU", "status": "0", "state": "1", "lastchange": "1714557600"}]
}]`

// zabbixServer answers JSON-RPC calls with canned results keyed by method.
type zabbixServer struct {
	*httptest.Server
	calls   atomic.Int32
	results map[string]string
	delay   time.Duration
}

func newZabbixServer(results map[string]string) *zabbixServer {
	z := &zabbixServer{results: results}
	z.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		z.calls.Add(1)
		if z.delay > 0 {
			time.Sleep(z.delay)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
			Auth   string `json:"auth"`
		}
		_ = json.Unmarshal(body, &req)
		res, ok := z.results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found","data":"`+req.Method+`"},"id":1}`)
			return
		}
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","result":`+res+`,"id":1}`)
	}))
	return z
}

var _ = Describe("NormalizeMetrics", func() {
	item := func(key, value string) monitoring.RawItem {
		return monitoring.RawItem{Key: key, LastValue: monitoring.Flex(value)}
	}

	It("fills every slot with the no-data sentinel", func() {
		m := monitoring.NormalizeMetrics(nil, i18n.PL)
		Expect(m).To(HaveLen(len(monitoring.MetricSlots)))
		for _, slot := range monitoring.MetricSlots {
			Expect(m[slot]).To(Equal("Brak danych"))
		}
	})

	It("formats known keys and ignores the rest", func() {
		m := monitoring.NormalizeMetrics([]monitoring.RawItem{
			item("system.cpu.util", "25.5"),
			item("vm.memory.size[total]", "8589934592"),
			item("vfs.fs.size[/,total]", "107374182400"),
			item("vfs.fs.size[/,used]", "1"),
			item("net.if.in[eth0]", "2097152"),
			item("icmpping", "1"),
			item("system.uptime", "129600"),
			item("custom.key", "42"),
			item("system.cpu.util[,idle]", "not-a-number"),
		}, i18n.PL)

		Expect(m[monitoring.MetricCPU]).To(Equal("25.50%"))
		Expect(m[monitoring.MetricMemory]).To(Equal("8.00 GB"))
		Expect(m[monitoring.MetricDisk]).To(Equal("100.00 GB"))
		Expect(m[monitoring.MetricNetwork]).To(Equal("2.00 MB/s"))
		Expect(m[monitoring.MetricPing]).To(Equal("OK"))
		Expect(m[monitoring.MetricUptime]).To(Equal("1,5 dni"))
		Expect(m[monitoring.MetricLastRestart]).To(Equal("Brak danych"))
	})

	It("uses a dot and English words in the en locale", func() {
		m := monitoring.NormalizeMetrics([]monitoring.RawItem{
			item("system.uptime", "129600"),
			item("icmpping[10.0.0.1]", "0"),
		}, i18n.EN)
		Expect(m[monitoring.MetricUptime]).To(Equal("1.5 days"))
		Expect(m[monitoring.MetricPing]).To(Equal("Failed"))
		Expect(m[monitoring.MetricCPU]).To(Equal("No data"))
	})
})

var _ = Describe("Availability", func() {
	iface := func(typ, avail string) monitoring.RawInterface {
		return monitoring.RawInterface{Type: monitoring.Flex(typ), Available: monitoring.Flex(avail)}
	}

	DescribeTable("reads the agent interface",
		func(ifaces []monitoring.RawInterface, want string) {
			Expect(monitoring.Availability(ifaces)).To(Equal(want))
		},
		Entry("available", []monitoring.RawInterface{iface("1", "1")}, monitoring.AvailabilityAvailable),
		Entry("unavailable", []monitoring.RawInterface{iface("1", "2")}, monitoring.AvailabilityUnavailable),
		Entry("other agent state", []monitoring.RawInterface{iface("1", "0")}, monitoring.AvailabilityUnknown),
		Entry("snmp only", []monitoring.RawInterface{iface("2", "1")}, monitoring.AvailabilityUnknown),
		Entry("no interfaces", nil, monitoring.AvailabilityUnknown),
	)
})

var _ = Describe("AggregateTriggers", func() {
	trigger := func(desc, status, state string, lastchange string) monitoring.RawTrigger {
		return monitoring.RawTrigger{
			Description: desc,
			Status:      monitoring.Flex(status),
			State:       monitoring.Flex(state),
			LastChange:  monitoring.Flex(lastchange),
		}
	}

	It("groups enabled problem triggers by description", func() {
		groups := monitoring.AggregateTriggers([]monitoring.RawTrigger{
			trigger("Disk full", "0", "1", "1714557600"),
			trigger("Disk full", "0", "1", "1714561200"),
			trigger("Agent down", "0", "1", "1714550000"),
			trigger("Disabled", "1", "1", "1714550000"),
			trigger("Recovered", "0", "0", "1714550000"),
		})
		Expect(groups).To(HaveLen(2))
		Expect(groups[0].Description).To(Equal("Agent down"))
		Expect(groups[1]).To(Equal(monitoring.AlertGroup{
			Description:    "Disk full",
			Count:          2,
			LastOccurrence: "2024-05-01 11:00:00",
		}))
	})
})

var _ = Describe("NormalizeAlert", func() {
	It("maps priority and falls back for missing fields", func() {
		a := monitoring.NormalizeAlert(monitoring.RawTrigger{
			TriggerID:   "77",
			Description: "Link down",
			Priority:    "4",
		}, i18n.EN)
		Expect(a.Priority).To(Equal("high"))
		Expect(a.PriorityNum).To(Equal("4"))
		Expect(a.HostName).To(Equal("Unknown Host"))
		Expect(a.LastChange).To(Equal("Unknown"))
		Expect(a.LastChangeTimestamp).To(Equal("0"))
		Expect(a.Value).To(Equal("0"))
	})
})

var _ = Describe("Flex", func() {
	It("accepts strings, numbers and null", func() {
		var v struct {
			A monitoring.Flex `json:"a"`
			B monitoring.Flex `json:"b"`
			C monitoring.Flex `json:"c"`
		}
		Expect(json.Unmarshal([]byte(`{"a":"1","b":2,"c":null}`), &v)).To(Succeed())
		Expect(v.A.String()).To(Equal("1"))
		Expect(v.B.Int64()).To(Equal(int64(2)))
		Expect(v.C.String()).To(BeEmpty())
	})
})

var _ = Describe("MetricValue", func() {
	DescribeTable("parses the leading number",
		func(in string, want float64, ok bool) {
			v, got := monitoring.MetricValue(in)
			Expect(got).To(Equal(ok))
			if ok {
				Expect(v).To(BeNumerically("~", want, 1e-9))
			}
		},
		Entry("percent", "25.50%", 25.5, true),
		Entry("comma days", "1,5 dni", 1.5, true),
		Entry("gigabytes", "8.00 GB", 8.0, true),
		Entry("text", "OK", 0.0, false),
	)
})

var _ = Describe("Service and Handler", func() {
	var (
		s       *store.Store
		events  *eventlog.Service
		repo    monitoring.RepositoryAPI
		zabbix  *zabbixServer
		handler *monitoring.Handler
		ctx     context.Context
	)

	newService := func(timeout time.Duration) *monitoring.Service {
		client := monitoring.NewClient(internal.MonitoringConfig{URL: zabbix.URL, Token: "secret", Timeout: timeout}, logger.Discard())
		return monitoring.NewService(client, repo, events, logger.Discard())
	}

	systemLogs := func() []*logsDatamodel.SystemLog {
		var rows []*logsDatamodel.SystemLog
		Expect(s.Gorm.Order("id ASC").Find(&rows).Error).To(Succeed())
		return rows
	}

	BeforeEach(func() {
		ctx = context.Background()
		s = storetest.MustOpen()
		events = eventlog.NewService(eventlogPostgres.NewEventLogRepository(s.Gorm), logger.Discard())
		repo = postgres.NewMonitoringRepository(s.Gorm)
		zabbix = newZabbixServer(map[string]string{"host.get": oneHost})
	})

	AfterEach(func() {
		zabbix.Close()
	})

	It("normalizes hosts and archives status and metrics", func() {
		handler = monitoring.NewHandler(transport.NewBaseHandler(logger.Discard()), newService(time.Second))

		rec := httptest.NewRecorder()
		handler.GetHosts(rec, httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/hosts", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var body struct {
			Result []monitoring.Host `json:"result"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Result).To(HaveLen(1))
		host := body.Result[0]
		Expect(host.Availability).To(Equal("Available"))
		Expect(host.Metrics["cpu"]).To(Equal("25.50%"))
		Expect(host.Alerts).To(Equal([]monitoring.AlertGroup{
			{Description: "High CPU", Count: 1, LastOccurrence: "2024-05-01 10:00:00"},
		}))

		var metrics []monitoringDatamodel.PerformanceMetric
		Expect(s.Gorm.Find(&metrics).Error).To(Succeed())
		Expect(metrics).To(HaveLen(1))
		Expect(metrics[0].MetricType).To(Equal("cpu"))
		Expect(metrics[0].Value).To(BeNumerically("~", 25.5, 1e-9))

		var statuses []monitoringDatamodel.HostStatusHistory
		Expect(s.Gorm.Find(&statuses).Error).To(Succeed())
		Expect(statuses).To(HaveLen(1))
		Expect(statuses[0].Status).To(Equal("available"))
		Expect(statuses[0].HostName).To(Equal("srv-app-01"))

		logs := systemLogs()
		Expect(logs).To(HaveLen(1))
		Expect(logs[0].Source).To(Equal("zabbix"))
		Expect(logs[0].Severity).To(Equal("warning"))
		Expect(logs[0].Message).To(Equal("High CPU"))
	})

	It("reports a timeout with an empty result and an error event", func() {
		zabbix.delay = 200 * time.Millisecond
		handler = monitoring.NewHandler(transport.NewBaseHandler(logger.Discard()), newService(20*time.Millisecond))

		rec := httptest.NewRecorder()
		handler.GetHosts(rec, httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/hosts", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var body map[string]json.RawMessage
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body).To(HaveKey("error"))
		Expect(string(body["result"])).To(Equal("[]"))

		logs := systemLogs()
		Expect(logs).To(HaveLen(1))
		Expect(logs[0].Source).To(Equal("zabbix"))
		Expect(logs[0].Severity).To(Equal("error"))
		Expect(logs[0].HostName).To(Equal("system"))
	})

	It("serves the archived view when zabbix fails after a good fetch", func() {
		svc := newService(time.Second)
		Expect(svc.Hosts(ctx, i18n.PL, monitoring.ViewAll).IsOK()).To(BeTrue())

		zabbix.results = map[string]string{}
		res := svc.Hosts(ctx, i18n.PL, monitoring.ViewAll)
		Expect(res.IsDegraded()).To(BeTrue())
		Expect(res.Reason).NotTo(BeEmpty())
		Expect(res.Payload).To(HaveLen(1))
		Expect(res.Payload[0].Name).To(Equal("srv-app-01"))
		Expect(res.Payload[0].Availability).To(Equal(monitoring.AvailabilityAvailable))
		Expect(res.Payload[0].Metrics["cpu"]).To(Equal("25.50%"))
		Expect(res.Payload[0].ArchivedAt).NotTo(BeNil())
	})

	It("logs an availability flip once", func() {
		zabbix.results["host.get"] = `[{"hostid":"1","name":"db-01","status":"0","interfaces":[{"type":"1","available":"2"}],"items":[],"triggers":[]}]`
		svc := newService(time.Second)

		res := svc.Hosts(ctx, i18n.PL, monitoring.ViewUnavailable)
		Expect(res.Payload).To(HaveLen(1))
		svc.Hosts(ctx, i18n.PL, monitoring.ViewAll)

		var flips []*logsDatamodel.SystemLog
		for _, l := range systemLogs() {
			if l.Message == "Host became unavailable" {
				flips = append(flips, l)
			}
		}
		Expect(flips).To(HaveLen(1))
		Expect(flips[0].HostName).To(Equal("db-01"))
		Expect(flips[0].Severity).To(Equal("error"))

		Expect(svc.Hosts(ctx, i18n.PL, monitoring.ViewAvailable).Payload).To(BeEmpty())

		history, err := svc.StatusHistory(ctx, "db-01", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(3))
		Expect(history[0].Status).To(Equal("unavailable"))
	})

	It("treats an agent state other than 1 or 2 as unknown", func() {
		zabbix.results["host.get"] = `[{"hostid":"1","name":"db-02","status":"0","interfaces":[{"type":"1","available":"0"}],"items":[],"triggers":[]}]`
		svc := newService(time.Second)

		res := svc.Hosts(ctx, i18n.PL, monitoring.ViewUnknown)
		Expect(res.IsOK()).To(BeTrue())
		Expect(res.Payload).To(HaveLen(1))
		Expect(res.Payload[0].Availability).To(Equal(monitoring.AvailabilityUnknown))
		Expect(svc.Hosts(ctx, i18n.PL, monitoring.ViewUnavailable).Payload).To(BeEmpty())

		Expect(systemLogs()).To(BeEmpty())

		history, err := svc.StatusHistory(ctx, "db-02", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).NotTo(BeEmpty())
		Expect(history[0].Status).To(Equal("unknown"))
	})

	It("lists unknown hosts and alerts", func() {
		zabbix.results["host.get"] = `[
			{"hostid":"1","name":"a","interfaces":[{"type":"1","available":"2"}]},
			{"hostid":"2","name":"b","interfaces":[{"type":"1","available":"1"}]}
		]`
		zabbix.results["trigger.get"] = `[{"triggerid":"9","description":"Link down","priority":"5","lastchange":"1714557600","status":"0","state":"1","value":"1","hosts":[{"hostid":"1","name":"a"}]}]`
		svc := newService(time.Second)

		unknown := svc.UnknownHosts(ctx)
		Expect(unknown.IsOK()).To(BeTrue())
		Expect(unknown.Payload).To(Equal([]monitoring.UnknownHost{{HostID: "1", Name: "a"}}))

		alerts := svc.Alerts(ctx, i18n.EN)
		Expect(alerts.IsOK()).To(BeTrue())
		Expect(alerts.Payload).To(HaveLen(1))
		Expect(alerts.Payload[0].Priority).To(Equal("disaster"))
		Expect(alerts.Payload[0].HostName).To(Equal("a"))
		Expect(alerts.Payload[0].LastChange).To(Equal("2024-05-01 10:00:00"))
	})

	It("rejects an unknown view", func() {
		handler = monitoring.NewHandler(transport.NewBaseHandler(logger.Discard()), newService(time.Second))
		rec := httptest.NewRecorder()
		handler.GetHosts(rec, httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/hosts?view=sideways", nil))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns archived metrics inside a time range", func() {
		svc := newService(time.Second)
		Expect(svc.Hosts(ctx, i18n.PL, monitoring.ViewAll).IsOK()).To(BeTrue())

		now := time.Now().UTC()
		points, err := svc.HistoricalMetrics(ctx, "10084", monitoring.MetricCPU, now.Add(-time.Hour), now.Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(HaveLen(1))
		Expect(string(points[0].Details)).To(ContainSubstring("25.50%"))

		points, err = svc.HistoricalMetrics(ctx, "10084", monitoring.MetricCPU, now.Add(time.Hour), now.Add(2*time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(BeEmpty())
	})
})
