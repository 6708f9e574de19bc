package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/quorum/internal/config"
	"github.com/Iron-Ham/quorum/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the persisted event trail",
	Long: `Inspect the audit database written when store.enabled is set.

Without flags, prints the most recent events. Use --type to filter by
event type or --counts for a per-type summary.`,
	RunE: runAudit,
}

var (
	auditLimit  int
	auditType   string
	auditCounts bool
)

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum events to print")
	auditCmd.Flags().StringVar(&auditType, "type", "", "filter by event type (e.g. agent.started)")
	auditCmd.Flags().BoolVar(&auditCounts, "counts", false, "print per-type event counts")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	path := cfg.Store.DatabasePath()

	db, err := store.NewDB(path)
	if err != nil {
		return fmt.Errorf("open audit store at %s: %w", path, err)
	}
	defer db.Close()

	ctx := context.Background()

	if auditCounts {
		counts, err := store.CountByType(ctx, db)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println("No events recorded")
			return nil
		}

		types := make([]string, 0, len(counts))
		for eventType := range counts {
			types = append(types, eventType)
		}
		sort.Strings(types)
		for _, eventType := range types {
			fmt.Printf("%8d  %s\n", counts[eventType], eventType)
		}
		return nil
	}

	var records []store.AuditRecord
	if auditType != "" {
		records, err = store.ListByType(ctx, db, auditType, auditLimit)
	} else {
		records, err = store.Recent(ctx, db, auditLimit)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %-22s %s\n",
			rec.CreatedAt.Format(time.RFC3339), rec.EventType, rec.PayloadJSON)
	}
	return nil
}
