package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/frahmantamala/opsboard/internal/eventlog"
	eventlogPostgres "github.com/frahmantamala/opsboard/internal/eventlog/postgres"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect recorded system events",
	Long:  `List the most recent upstream failures, login problems and sync errors recorded in system_logs.`,
	Run: func(cmd *cobra.Command, args []string) {
		listEvents()
	},
}

var (
	eventSource string
	eventLimit  int
)

func listEvents() {
	ctx := context.Background()
	cfg, logger := mustLoadConfig()

	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	svc := eventlog.NewService(eventlogPostgres.NewEventLogRepository(s.Gorm), logger)
	list, err := svc.Recent(ctx, eventSource, eventLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list events: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSOURCE\tSEVERITY\tHOST\tMESSAGE")
	for _, e := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.DateTime), e.Source, e.Severity, e.HostName, e.Message)
	}
	_ = w.Flush()
}

func init() {
	eventCmd.Flags().StringVar(&eventSource, "source", "", "Only events from this source (zabbix, graylog, glpi, ldap, vnc, sync)")
	eventCmd.Flags().IntVar(&eventLimit, "limit", 50, "Maximum number of events")

	rootCmd.AddCommand(eventCmd)
}
