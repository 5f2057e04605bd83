package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/opsboard/internal/syncworker"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that keep the archive tables fresh without a browser open.`,
}

var syncWorkerCmd = &cobra.Command{
	Use:   "sync",
	Short: "Start the scheduled refresh worker pool",
	Long:  `Periodically refresh assets from GLPI, host status from Zabbix and messages from Graylog.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSyncWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
)

func startSyncWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config, logger := mustLoadConfig()

	s, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return
	}
	defer s.Close()

	services := buildServices(config, s, logger)

	poolConfig := syncworker.ConfigFrom(config.Sync)
	poolConfig.Workers = getIntFlag(maxWorkers, poolConfig.Workers)
	poolConfig.QueueSize = getIntFlag(jobQueueSize, poolConfig.QueueSize)

	logger.Info("starting sync worker",
		"workers", poolConfig.Workers,
		"queue_size", poolConfig.QueueSize,
		"assets_interval", config.Sync.AssetsInterval.String(),
		"monitoring_interval", config.Sync.MonitoringInterval.String(),
		"logs_interval", config.Sync.LogsInterval.String())

	pool := syncworker.NewPool(poolConfig, map[string]syncworker.Runner{
		syncworker.JobAssets:     syncworker.AssetsJob(services.Assets),
		syncworker.JobMonitoring: syncworker.MonitoringJob(services.Monitoring),
		syncworker.JobLogs:       syncworker.LogsJob(services.Logs, config.Sync.LogsRangeMinutes),
	}, services.Events, logger)
	pool.Start()

	pool.Schedule(syncworker.JobAssets, config.Sync.AssetsInterval)
	pool.Schedule(syncworker.JobMonitoring, config.Sync.MonitoringInterval)
	pool.Schedule(syncworker.JobLogs, config.Sync.LogsInterval)

	go services.LogBuffer.Run(ctx, config.Logs.SweepInterval)

	logger.Info("sync worker is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("received signal, shutting down sync worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		for kind, st := range pool.Stats() {
			logger.Info("sync job totals", "kind", kind, "runs", st.Runs, "failures", st.Failures, "last_run", st.LastRun.Format(time.RFC3339))
		}
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, forcing exit")
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	syncWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Number of workers (overrides config)")
	syncWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")

	workerCmd.AddCommand(syncWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
