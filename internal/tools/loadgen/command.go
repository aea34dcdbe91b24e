package loadgen

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roomcast/roomcast-backend/internal/tools/common"
	"github.com/roomcast/roomcast-backend/internal/tools/ui"
)

// NewRootCommand builds the standalone traffic generator CLI.
func NewRootCommand() *cobra.Command {
	cfg := Config{}
	var ci bool

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate synthetic traffic against a running backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := fmt.Sprintf("loadgen %s @ %d rps", normalizeProfile(cfg.Profile), cfg.RPS)
			runFn := func(ctx context.Context) ([]string, error) {
				res, err := Run(ctx, cfg)
				if err != nil {
					return nil, err
				}
				details := []string{
					fmt.Sprintf("requests=%d failures=%d elapsed=%s", res.TotalRequests, res.Failures, res.Elapsed.Round(time.Millisecond)),
				}
				for class, count := range res.StatusClasses {
					details = append(details, fmt.Sprintf("%s=%d", class, count))
				}
				return details, nil
			}

			var details []string
			var err error
			if ci {
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Duration+time.Minute)
				defer cancel()
				details, err = runFn(ctx)
				common.PrintCIResult(err == nil, title, details, err)
			} else {
				_, err = ui.Run(title, runFn)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: auth, statistics, health or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to run")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "target requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 6, "worker goroutines")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().BoolVar(&ci, "ci", false, "non-interactive machine-readable output")
	return cmd
}
