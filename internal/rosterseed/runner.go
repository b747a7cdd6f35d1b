package rosterseed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/okian/hackjudge/pkg/logger"
)

const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Result is what a run created.
type Result struct {
	Credentials []Credential
	Stats       Stats
}

// Run seeds the roster named by config.File.
func Run(ctx context.Context, config *Config) (Result, error) {
	roster, err := LoadRoster(config.File)
	if err != nil {
		return Result{}, err
	}
	return Seed(ctx, config, roster)
}

// Seed creates teams in batches, then judges concurrently. Judges whose
// code is already taken are counted as existing, so a rerun is safe.
func Seed(ctx context.Context, config *Config, roster Roster) (Result, error) {
	log := logger.Get().Named("rosterseed")
	res := Result{Stats: Stats{StartTime: time.Now()}}

	log.Info(ctx, "starting roster seed",
		logger.String("baseURL", config.BaseURL),
		logger.Int("teams", len(roster.Teams)),
		logger.Int("judges", len(roster.Judges)),
		logger.Int("workers", config.Workers),
		logger.Bool("dryRun", config.DryRun))

	client := newHTTPClient(config.BaseURL, "", config.Timeout)
	if err := client.health(ctx); err != nil {
		return res, fmt.Errorf("service health check failed: %w", err)
	}
	admin, err := client.signIn(ctx, config.AdminCode)
	if err != nil {
		return res, fmt.Errorf("sign in: %w", err)
	}
	log.Info(ctx, "signed in", logger.String("admin", admin.Name))

	for i, batch := range batches(roster.Teams, config.BatchSize) {
		seeded, err := client.seedTeams(ctx, batch, config.DryRun)
		if err != nil {
			return finish(res), fmt.Errorf("seed batch %d: %w", i, err)
		}
		res.Stats.TeamsPlanned += len(seeded.Plan)
		res.Stats.TeamsCreated += len(seeded.Created)
		res.Stats.TeamsFailed += len(seeded.Failed)

		created := make(map[string]bool, len(seeded.Created))
		for _, id := range seeded.Created {
			created[id] = true
		}
		for _, row := range seeded.Plan {
			if seeded.DryRun || created[row.TeamID] {
				res.Credentials = append(res.Credentials, Credential{Kind: "team", ID: row.TeamID, Name: row.Name, Code: row.TeamCode})
			}
		}
	}

	if !config.DryRun {
		if err := seedJudges(ctx, client, config.Workers, roster.Judges, &res); err != nil {
			return finish(res), err
		}
	}

	res = finish(res)
	log.Info(ctx, "roster seed finished",
		logger.Int("teamsPlanned", res.Stats.TeamsPlanned),
		logger.Int("teamsCreated", res.Stats.TeamsCreated),
		logger.Int("teamsFailed", res.Stats.TeamsFailed),
		logger.Int("judgesCreated", res.Stats.JudgesCreated),
		logger.Int("judgesExisted", res.Stats.JudgesExisted),
		logger.Int("judgesFailed", res.Stats.JudgesFailed),
		logger.String("duration", res.Stats.Duration.String()))

	if config.OutputFile != "" {
		if err := writeCredentials(config.OutputFile, res.Credentials); err != nil {
			log.Warn(ctx, "failed to save credentials", logger.Error(err))
		}
	}
	if res.Stats.TeamsFailed > 0 || res.Stats.JudgesFailed > 0 {
		return res, fmt.Errorf("%d teams and %d judges failed", res.Stats.TeamsFailed, res.Stats.JudgesFailed)
	}
	return res, nil
}

func seedJudges(ctx context.Context, client *HTTPClient, workers int, judges []Judge, res *Result) error {
	log := logger.Get().Named("rosterseed")
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, j := range judges {
		g.Go(func() error {
			created, err := client.createJudge(gctx, j)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Stats.JudgesCreated++
				res.Credentials = append(res.Credentials, Credential{Kind: "judge", ID: created.ID, Name: created.Name, Code: created.Code})
			case errors.Is(err, ErrConflict):
				res.Stats.JudgesExisted++
			case errors.Is(err, ErrUnauthorized), errors.Is(err, context.Canceled):
				return err
			default:
				res.Stats.JudgesFailed++
				log.Warn(gctx, "creating judge", logger.String("name", j.Name), logger.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("create judges: %w", err)
	}
	return nil
}

func finish(res Result) Result {
	res.Stats.EndTime = time.Now()
	res.Stats.Duration = res.Stats.EndTime.Sub(res.Stats.StartTime)
	return res
}

// writeCredentials saves the created codes as YAML for distribution.
func writeCredentials(filename string, creds []Credential) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	raw, err := yaml.Marshal(map[string][]Credential{"credentials": creds})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return os.WriteFile(filename, raw, outputPermission)
}
