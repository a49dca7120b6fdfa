package main

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tern/internal/config"
	"tern/internal/mem"
	"tern/internal/selfcheck"
	"tern/internal/snapshot"
)

var (
	exerciseConfig string
	exerciseReport string
)

func init() {
	exerciseCmd.Flags().StringVar(&exerciseConfig, "config", config.DefaultFile, "path to the tern.toml manifest")
	exerciseCmd.Flags().StringVar(&exerciseReport, "report", "", "write a msgpack diagnostics snapshot to this file")
}

var exerciseCmd = &cobra.Command{
	Use:   "exercise",
	Short: "Run the value core's behavioral self-checks",
	Long: `Exercise runs every behavioral self-check of the value core, repeatedly and
across workers, to validate a build on the host it will embed into.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Level:           log.InfoLevel,
		})
		if quiet {
			logger.SetLevel(log.ErrorLevel)
		}

		cfg, err := config.Load(exerciseConfig)
		if err != nil {
			return err
		}
		if exerciseReport != "" {
			cfg.Diagnostics.Report = exerciseReport
		}
		if cfg.Diagnostics.Track || cfg.Diagnostics.Report != "" {
			mem.EnableTracking()
			defer mem.DisableTracking()
		}

		logger.Info("running self-checks",
			"iterations", cfg.Exercise.Iterations,
			"workers", cfg.Exercise.Workers)

		results, err := runChecks(cfg, logger)
		if err != nil {
			return err
		}
		renderResults(cmd.OutOrStdout(), results)

		if cfg.Diagnostics.Report != "" {
			if err := writeReport(cfg.Diagnostics.Report); err != nil {
				return err
			}
			logger.Info("wrote diagnostics snapshot", "path", cfg.Diagnostics.Report)
		}

		for _, r := range results {
			if r.err != nil {
				return fmt.Errorf("self-check %s failed: %w", r.name, r.err)
			}
		}
		return nil
	},
}

type checkResult struct {
	name    string
	runs    int
	elapsed time.Duration
	err     error
}

// runChecks runs every self-check cfg.Exercise.Iterations times, spread over
// a bounded worker group. Checks are independent; a failing run records its
// error but does not cancel the siblings, so the table stays complete.
func runChecks(cfg config.Config, logger *log.Logger) ([]checkResult, error) {
	checks := selfcheck.All()
	var mu sync.Mutex
	byName := make(map[string]*checkResult, len(checks))
	for _, c := range checks {
		byName[c.Name] = &checkResult{name: c.Name}
	}

	var g errgroup.Group
	g.SetLimit(cfg.Exercise.Workers)
	for range cfg.Exercise.Iterations {
		for _, c := range checks {
			g.Go(func() error {
				start := time.Now()
				err := c.Run()
				elapsed := time.Since(start)

				mu.Lock()
				r := byName[c.Name]
				r.runs++
				r.elapsed += elapsed
				if err != nil && r.err == nil {
					r.err = err
				}
				mu.Unlock()

				if err != nil {
					logger.Error("self-check failed", "check", c.Name, "err", err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]checkResult, 0, len(byName))
	for _, r := range byName {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })
	return results, nil
}

func writeReport(path string) error {
	snap, err := snapshot.Capture()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := snapshot.Encode(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
