package cli

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"quiz-engine/internal/config"
	"quiz-engine/internal/domain"
	"quiz-engine/internal/infra/opentdb"
	"quiz-engine/internal/infra/postgres"
)

// NewImportCmd copies batches from the Open Trivia Database into the question bank.
func NewImportCmd(configPath *string) *cobra.Command {
	var (
		batches int
		pause   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Seed the question bank from the Open Trivia Database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, newLogger(cfg), batches, pause)
		},
	}
	cmd.Flags().IntVar(&batches, "batches", 5, "number of batches to fetch")
	cmd.Flags().DurationVar(&pause, "pause", 6*time.Second, "wait between batches to stay under the rate limit")
	return cmd
}

func runImport(ctx context.Context, cfg config.Config, log logrus.FieldLogger, batches int, pause time.Duration) error {
	if err := runMigrations(ctx, cfg, log); err != nil {
		return err
	}
	db, err := openBunDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client := opentdb.NewClient(cfg.Provider.URL, config.TTLDuration(cfg.Provider.Timeout, 10*time.Second), log)
	importer := postgres.NewImporter(db)
	req := importBatch(cfg)

	total := 0
	for i := 0; i < batches; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
		questions, err := client.Fetch(ctx, req)
		if errors.Is(err, domain.ErrRateLimited) {
			log.WithField("batch", i+1).Warn("rate limited, skipping batch")
			continue
		}
		if err != nil {
			return err
		}
		added, err := importer.Import(ctx, questions)
		if err != nil {
			return err
		}
		total += added
		log.WithFields(logrus.Fields{"batch": i + 1, "added": added}).Info("imported batch")
	}
	log.WithField("added", total).Info("import finished")
	return nil
}

// importBatch shapes the batches pulled into the question bank.
func importBatch(cfg config.Config) domain.BatchRequest {
	req := domain.DefaultBatch()
	if cfg.Provider.Amount > 0 {
		req.Amount = cfg.Provider.Amount
	}
	if cfg.Provider.Difficulty != "" {
		req.Difficulty = cfg.Provider.Difficulty
	}
	if cfg.Provider.Type != "" {
		req.Type = cfg.Provider.Type
	}
	return req
}
