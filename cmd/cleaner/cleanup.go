package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/pkg/config"

	"github.com/spf13/cobra"
)

var errNoCutoff = errors.New("cutoff is required: pass --before or set CLEANUP_CUTOFF")

type notificationsOptions struct {
	before       string
	withProjects bool
	dryRun       bool
	batchSize    int
}

func newNotificationsCmd(setup setupFunc) *cobra.Command {
	o := &notificationsOptions{}

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Delete notifications created before the cutoff",
		Long: `Delete notifications created before the cutoff.

With --with-projects, candidate projects older than the cutoff are deleted
afterwards together with their project updates and project actions.
Re-running after a failure is safe: already deleted documents are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, ctx, cancel, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer rt.close()

			cutoff, err := resolveCutoff(o.before, rt.cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleting notifications created before %s\n", cutoff.Format(time.RFC3339))

			result, err := rt.app.Cleaner.CleanNotifications(ctx, entities.NotificationsCleanupRequest{
				BeforeDate:      cutoff,
				IncludeProjects: o.withProjects,
				BatchSize:       batchSizeOrDefault(o.batchSize, rt.cfg),
				DryRun:          o.dryRun,
			})
			printSummary(out, result, o.dryRun)
			return err
		},
	}

	cmd.Flags().StringVar(&o.before, "before", "", "Cutoff as RFC 3339 or YYYY-MM-DD (default CLEANUP_CUTOFF)")
	cmd.Flags().BoolVar(&o.withProjects, "with-projects", false, "Also delete stale projects with their updates and actions")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Count matching documents without deleting")
	cmd.Flags().IntVar(&o.batchSize, "batch-size", 0, "Operations per atomic commit, at most 500 (default DEFAULT_BATCH_SIZE)")
	return cmd
}

type collectionOptions struct {
	before    string
	field     string
	cascades  []string
	dryRun    bool
	strict    bool
	batchSize int
}

func newCollectionCmd(setup setupFunc) *cobra.Command {
	o := &collectionOptions{}

	cmd := &cobra.Command{
		Use:   "collection <name>",
		Short: "Delete documents of a collection created before the cutoff",
		Long: `Delete documents of a collection whose timestamp field is before the cutoff.

Each --cascade child:foreignKey[:parent] also deletes documents of the child
collection whose foreignKey equals the id of a deleted parent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cascades, err := parseCascades(args[0], o.cascades)
			if err != nil {
				return err
			}

			rt, ctx, cancel, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer rt.close()

			cutoff, err := resolveCutoff(o.before, rt.cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleting %s created before %s\n", args[0], cutoff.Format(time.RFC3339))

			result, err := rt.app.Cleaner.CleanCollection(ctx, entities.CleanupRequest{
				Collection:     args[0],
				TimestampField: o.field,
				BeforeDate:     cutoff,
				BatchSize:      batchSizeOrDefault(o.batchSize, rt.cfg),
				Cascades:       cascades,
				DryRun:         o.dryRun,
				StrictCascade:  o.strict,
			})
			printSummary(out, result, o.dryRun)
			return err
		},
	}

	cmd.Flags().StringVar(&o.before, "before", "", "Cutoff as RFC 3339 or YYYY-MM-DD (default CLEANUP_CUTOFF)")
	cmd.Flags().StringVar(&o.field, "field", "", "Timestamp field to compare (default TIMESTAMP_FIELD)")
	cmd.Flags().StringArrayVar(&o.cascades, "cascade", nil, "Dependent collection as child:foreignKey[:parent], repeatable")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Count matching documents without deleting")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "Abort when a dependent lookup fails instead of skipping it")
	cmd.Flags().IntVar(&o.batchSize, "batch-size", 0, "Operations per atomic commit, at most 500 (default DEFAULT_BATCH_SIZE)")
	return cmd
}

// resolveCutoff берет --before, иначе CLEANUP_CUTOFF
func resolveCutoff(flag string, cfg *config.Config) (time.Time, error) {
	if flag != "" {
		t, err := config.ParseCutoff(flag)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --before: %w", err)
		}
		return t, nil
	}

	t, err := cfg.CleanupCutoff()
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, errNoCutoff
	}
	return t, nil
}

func batchSizeOrDefault(n int, cfg *config.Config) int {
	if n == 0 {
		return cfg.Cleanup.DefaultBatchSize
	}
	return n
}

// parseCascades разбирает значения вида child:foreignKey[:parent]
func parseCascades(collection string, values []string) ([]entities.CascadeRule, error) {
	rules := make([]entities.CascadeRule, 0, len(values))
	for _, v := range values {
		parts := strings.Split(v, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --cascade %q: expected child:foreignKey[:parent]", v)
		}

		rule := entities.CascadeRule{
			ParentCollection: collection,
			ChildCollection:  parts[0],
			ForeignKeyField:  parts[1],
		}
		if len(parts) == 3 && parts[2] != "" {
			rule.ParentCollection = parts[2]
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
