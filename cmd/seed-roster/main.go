package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/hackjudge/internal/rosterseed"
	"github.com/okian/hackjudge/pkg/logger"
)

const (
	defaultBatchSize = 50
	defaultWorkers   = 4
	defaultTimeout   = 30 * time.Second
	defaultRunLimit  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "Base URL of the service")
		code      = flag.String("code", os.Getenv("HACKJUDGE_ADMIN_CODE"), "Sign-in code of an admin judge")
		file      = flag.String("file", "", "Roster YAML file")
		batchSize = flag.Int("batch", defaultBatchSize, "Teams per seed request")
		workers   = flag.Int("workers", defaultWorkers, "Concurrent judge requests")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		dryRun    = flag.Bool("dry-run", false, "Print the team plan without writing")
		output    = flag.String("output", "", "Write created sign-in codes to this YAML file")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || *file == "" || *code == "" {
		rosterseed.ShowHelp()
		if !*help {
			os.Exit(2)
		}
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	res, err := rosterseed.Run(ctx, &rosterseed.Config{
		BaseURL:    *baseURL,
		AdminCode:  *code,
		File:       *file,
		BatchSize:  *batchSize,
		Workers:    *workers,
		Timeout:    *timeout,
		DryRun:     *dryRun,
		OutputFile: *output,
	})
	for _, c := range res.Credentials {
		os.Stdout.WriteString(c.Kind + "\t" + c.ID + "\t" + c.Code + "\t" + c.Name + "\n")
	}
	if err != nil {
		os.Stderr.WriteString("seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
