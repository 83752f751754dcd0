package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gdelt-stars/cluster"
	"gdelt-stars/config"
	"gdelt-stars/embed"
	"gdelt-stars/gdelt"
	"gdelt-stars/notify"
	"gdelt-stars/pipeline"
	"gdelt-stars/scheduler"
	"gdelt-stars/storage"
	"gdelt-stars/titles"
	"gdelt-stars/viz"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "gdelt-stars",
		Short:         "Build an interactive star map of geopolitical events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file path")

	root.AddCommand(newRunCommand(&configFlag))
	root.AddCommand(newFetchCommand(&configFlag))
	root.AddCommand(newEmbedCommand(&configFlag))
	root.AddCommand(newClusterCommand(&configFlag))
	root.AddCommand(newVisualizeCommand(&configFlag))
	root.AddCommand(newScheduleCommand(&configFlag))
	root.AddCommand(newHistoryCommand(&configFlag))

	return root
}

func newRunCommand(configFlag *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: fetch, embed, cluster, visualize",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			opts := make([]pipeline.Option, 0, 2)
			if !yes {
				opts = append(opts, pipeline.WithConfirm(promptConfirm(cmd)))
			}
			notifyOpt, err := notifierOption(cfg)
			if err != nil {
				return err
			}
			if notifyOpt != nil {
				opts = append(opts, notifyOpt)
			}

			runner, cleanup, err := buildRunner(cfg, opts...)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext(cmd)
			defer stop()

			return runner.Run(ctx)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "run without confirmation")
	return cmd
}

func newFetchCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download events and enrich titles into the events artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			runner, cleanup, err := buildRunner(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext(cmd)
			defer stop()

			events, err := runner.Fetch(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", len(events), cfg.EventsPath)
			return nil
		},
	}
}

func newEmbedCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Embed titles and project them to star map coordinates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			runner, cleanup, err := buildRunner(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext(cmd)
			defer stop()

			events, err := runner.Embed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d embedded events to %s\n", len(events), cfg.EnrichedPath)
			return nil
		},
	}
}

func newClusterCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cluster",
		Short: "Group events into clusters and label them with keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			runner, cleanup, err := buildRunner(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			events, err := runner.Cluster()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d clustered events to %s\n", len(events), cfg.ClusteredPath)
			return nil
		},
	}
}

func newVisualizeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "visualize",
		Short: "Render the interactive star map document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			runner, cleanup, err := buildRunner(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := runner.Visualize(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.HTMLPath)
			return nil
		},
	}
}

func newScheduleCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline every day at the configured time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			var opts []pipeline.Option
			notifyOpt, err := notifierOption(cfg)
			if err != nil {
				return err
			}
			if notifyOpt != nil {
				opts = append(opts, notifyOpt)
			}

			// Scheduled runs never prompt for confirmation.
			runner, cleanup, err := buildRunner(cfg, opts...)
			if err != nil {
				return err
			}
			defer cleanup()

			sched, err := scheduler.NewScheduler(cfg.Timezone)
			if err != nil {
				return err
			}

			if err := sched.ScheduleDaily(cfg.ScheduleTime, func() {
				if err := runner.Run(context.Background()); err != nil {
					slog.Error("scheduled run failed", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("schedule run: %w", err)
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			sched.Start()
			defer sched.Stop()
			slog.Info("scheduler started",
				"time", cfg.ScheduleTime,
				"timezone", cfg.Timezone,
				"next_run", sched.NextRun())

			<-ctx.Done()
			slog.Info("scheduler stopped")
			return nil
		},
	}
}

func newHistoryCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFlag)
			if err != nil {
				return err
			}

			db, err := storage.NewDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			runs, err := db.RecentRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("load runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			fmt.Fprintf(out, "%-36s  %-19s  %-9s  %6s  %8s  %-9s  %s\n",
				"ID", "STARTED", "STATUS", "EVENTS", "CLUSTERS", "DURATION", "ERROR")
			for _, run := range runs {
				duration := "-"
				if run.FinishedAt != nil {
					duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
				}
				errText := run.Error
				if len(errText) > 60 {
					errText = errText[:57] + "..."
				}
				fmt.Fprintf(out, "%-36s  %-19s  %-9s  %6d  %8d  %-9s  %s\n",
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Status,
					run.EventCount,
					run.ClusterCount,
					duration,
					errText)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

// loadConfig reads the config file and sets up logging. Without an
// explicit --config flag a missing file falls back to defaults.
func loadConfig(flagPath string) (*config.Config, error) {
	path := flagPath
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err == nil {
		setupLogging(cfg.LogLevel)
		slog.Info("config loaded", "path", path)
		return cfg, nil
	}
	if flagPath == "" && errors.Is(err, os.ErrNotExist) {
		cfg, err := config.Default()
		if err != nil {
			return nil, err
		}
		setupLogging(cfg.LogLevel)
		slog.Info("no config file found, using defaults")
		return cfg, nil
	}
	return nil, err
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
}

// buildRunner wires the pipeline from config. The returned cleanup
// closes the database and must be called when the runner is done.
func buildRunner(cfg *config.Config, extra ...pipeline.Option) (*pipeline.Runner, func(), error) {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanup := func() {
		db.Close()
	}

	source := gdelt.NewClient(gdelt.WithBaseURL(cfg.GDELTBaseURL))
	fetcher := titles.NewClient(
		titles.WithTimeout(time.Duration(cfg.TitleTimeoutSecs) * time.Second),
	)
	enricher := titles.NewEnricher(fetcher,
		titles.WithWorkers(cfg.TitleWorkers),
		titles.WithCache(db),
	)
	embedder := embed.NewClient(cfg.HuggingFaceToken,
		embed.WithBaseURL(cfg.EmbeddingBaseURL),
		embed.WithModel(cfg.EmbeddingModel),
		embed.WithBatchSize(cfg.EmbeddingBatchSize),
		embed.WithTimeout(time.Duration(cfg.EmbeddingTimeoutSecs)*time.Second),
		embed.WithWarmupBudget(time.Duration(cfg.WarmupBudgetSecs)*time.Second),
	)
	projector := embed.NewProjector(
		embed.WithPerplexity(cfg.TSNEPerplexity),
		embed.WithLearningRate(cfg.TSNELearningRate),
		embed.WithIterations(cfg.TSNEIterations),
		embed.WithSeed(cfg.TSNESeed),
	)
	clusterer := cluster.NewClusterer(
		cluster.WithClusters(cfg.ClusterCount),
		cluster.WithKeywordCount(cfg.ClusterKeywords),
		cluster.WithRestarts(cfg.ClusterRestarts),
		cluster.WithSeed(cfg.ClusterSeed),
	)

	opts := []pipeline.Option{
		pipeline.WithLookback(cfg.LookbackDays),
		pipeline.WithCountryPrefix(cfg.CountryPrefix),
		pipeline.WithPaths(cfg.EventsPath, cfg.EnrichedPath, cfg.ClusteredPath, cfg.HTMLPath),
		pipeline.WithRunStore(db),
	}
	opts = append(opts, extra...)

	runner := pipeline.NewRunner(source, enricher, embedder, projector, clusterer, viz.NewRenderer(), opts...)
	return runner, cleanup, nil
}

// notifierOption wires Telegram when configured, nil otherwise.
func notifierOption(cfg *config.Config) (pipeline.Option, error) {
	if cfg.TelegramToken == "" {
		return nil, nil
	}
	notifier, err := notify.Connect(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		return nil, fmt.Errorf("telegram notifier: %w", err)
	}
	return pipeline.WithNotifier(&notifierAdapter{notifier}), nil
}

// promptConfirm asks before a full run. Pressing enter or answering
// y/Y proceeds, anything else cancels.
func promptConfirm(cmd *cobra.Command) func(string) bool {
	return func(plan string) bool {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, plan)
		fmt.Fprint(out, "Continue? [Y/n]: ")

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "" || answer == "y"
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// notifierAdapter bridges pipeline run summaries to telegram reports.
type notifierAdapter struct {
	notifier *notify.Notifier
}

func (a *notifierAdapter) NotifyRun(ctx context.Context, summary pipeline.RunSummary) error {
	return a.notifier.NotifyRun(ctx, notify.Report{
		Status:       summary.Status,
		EventCount:   summary.EventCount,
		ClusterCount: summary.ClusterCount,
		Duration:     summary.Duration,
		OutputPath:   summary.OutputPath,
		Err:          summary.Err,
	})
}
