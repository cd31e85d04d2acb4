package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	pgloader "quizmaster/internal/infra/postgres"
)

// NewImportCmd loads quiz sets from a JSON file into the Postgres library.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import quiz sets from a JSON file into the quiz library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			sets, err := readQuizSets(args[0])
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}
			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			loader := pgloader.NewQuizLoader(b.pool)
			for _, set := range sets {
				if err := loader.ImportQuiz(ctx, set); err != nil {
					return err
				}
				slog.Info("imported quiz", "quiz", set.ID, "questions", len(app.Flatten(set.Groups)))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d quiz sets\n", len(sets))
			return nil
		},
	}
}

// readQuizSets accepts either one quiz set or an array of them. Sets
// without an id get a fresh one; sets without questions are rejected.
func readQuizSets(path string) ([]domain.QuizSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sets []domain.QuizSet
	if err := json.Unmarshal(data, &sets); err != nil {
		var one domain.QuizSet
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		sets = []domain.QuizSet{one}
	}
	if len(sets) == 0 {
		return nil, errors.New("no quiz sets in file")
	}
	for i := range sets {
		if sets[i].ID == "" {
			sets[i].ID = uuid.NewString()
		}
		if len(app.Flatten(sets[i].Groups)) == 0 {
			return nil, fmt.Errorf("quiz set %s: %w", sets[i].ID, domain.ErrNoPlayableContent)
		}
	}
	return sets, nil
}

type keyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

type exportDocument struct {
	Identity domain.Identity `json:"identity"`
	Created  int             `json:"createdCount"`
	Profile  domain.Profile  `json:"profile"`
}

// NewExportCmd prints an identity's stored progress as JSON.
func NewExportCmd(configPath *string) *cobra.Command {
	var (
		userKey  string
		listKeys bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the stored history, badges and creation count of an identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if listKeys {
				lister, ok := b.storage.(keyLister)
				if !ok {
					return errors.New("storage driver cannot list keys")
				}
				keys, err := lister.Keys(ctx)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			}

			id := domain.IdentityFrom(userKey)
			progress := app.NewProgressService(b.storage)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(exportDocument{
				Identity: id,
				Created:  progress.CreatedCount(ctx, id),
				Profile:  progress.Profile(ctx, id),
			})
		},
	}
	cmd.Flags().StringVar(&userKey, "user", "", "user key to export (guest when empty)")
	cmd.Flags().BoolVar(&listKeys, "keys", false, "list every stored progress key instead")
	return cmd
}
