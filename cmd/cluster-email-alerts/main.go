package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/clustermon/cluster-email-alerts/internal/config"
	"github.com/clustermon/cluster-email-alerts/internal/notify"
	"github.com/clustermon/cluster-email-alerts/internal/notify/provider"
	"github.com/clustermon/cluster-email-alerts/internal/run"
	"github.com/clustermon/cluster-email-alerts/internal/source"
)

func main() {
	configPath := flag.String("config", "", "path to the rule configuration file (required)")
	historyPath := flag.String("history", "", "alert history file; overrides the config's history.path")
	noEmails := flag.Bool("no-emails", false, "do not send emails; log the decisions instead")
	debug := flag.Bool("debug", false, "enable debug logging")
	interval := flag.Duration("interval", 0, "re-run every interval instead of exiting (0 runs once); the config file is reloaded on change")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *configPath == "" {
		slog.Error("the -config flag is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("cluster-email-alerts starting",
		"config", *configPath,
		"cluster", cfg.Cluster.Name,
		"source", cfg.Source.Type,
		"no_emails", *noEmails,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *interval <= 0 {
		if err := runOnce(ctx, cfg, *historyPath, *noEmails); err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
		return
	}

	// Interval mode: this process is the periodic trigger. Each tick is
	// still one independent run against the history file.
	var mu sync.Mutex
	current := cfg
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			mu.Lock()
			current = next
			mu.Unlock()
		})
		if err != nil {
			slog.Error("config watch stopped", "err", err)
		}
	}()

	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		mu.Lock()
		c := current
		mu.Unlock()
		if err := runOnce(ctx, c, *historyPath, *noEmails); err != nil {
			slog.Error("run failed", "err", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("cluster-email-alerts shutting down")
			return
		case <-t.C:
		}
	}
}

// runOnce builds the collaborators for one invocation and executes it.
func runOnce(ctx context.Context, cfg *config.Config, historyOverride string, noEmails bool) error {
	var src source.Source
	switch cfg.Source.Type {
	case "prometheus":
		src = source.NewPromSource(cfg.Source.Endpoint)
	default:
		src = source.NewRESTSource(cfg.Cluster)
	}

	var notifier notify.Notifier
	if noEmails {
		notifier = notify.LogNotifier{}
	} else {
		notifier = notify.NewEmailNotifier(cfg.Email.Sender, provider.FromConfig(cfg.Email))
	}

	historyPath := cfg.History.Path
	if historyOverride != "" {
		historyPath = historyOverride
	}

	r := &run.Runner{
		Config:      cfg,
		Source:      src,
		Notifier:    notifier,
		HistoryPath: historyPath,
	}
	return r.Run(ctx)
}
