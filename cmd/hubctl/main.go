// cmd/hubctl — operator CLI for the study hub. Talks straight to the
// document store, so it needs DATABASE_URL (or --database); the HTTP hub does
// not have to be running.
//
// Usage:
//
//	hubctl users list
//	hubctl resources list notes
//	hubctl stats sync
//	hubctl logs
//	DATABASE_URL=postgres://... hubctl seed
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/auditlog"
	"github.com/techastra/studyhub/internal/catalog"
	"github.com/techastra/studyhub/internal/docstore"
	"github.com/techastra/studyhub/internal/stats"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var databaseURL string

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "Study hub operator CLI",
	Long: `hubctl manages a study hub deployment directly through its document
store: inspect users, curate resources, repair aggregate counters, and read
the admin audit log.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.AutomaticEnv()
		if databaseURL == "" {
			databaseURL = viper.GetString("DATABASE_URL")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database", "", "Postgres URL (default $DATABASE_URL)")

	statsCmd.AddCommand(statsSyncCmd, statsShowCmd)
	usersCmd.AddCommand(usersListCmd)
	resourcesCmd.AddCommand(resourcesListCmd)

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore connects to the configured Postgres document store.
func openStore(ctx context.Context) (docstore.Store, func(), error) {
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("no database configured: set DATABASE_URL or pass --database")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	store, err := docstore.NewPostgres(ctx, pool, zap.NewNop())
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	cleanup := func() {
		store.Close()
		pool.Close()
	}
	return store, cleanup, nil
}

// ── stats ────────────────────────────────────────────────────────────────────

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Inspect and repair the aggregate counters",
}

var statsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current aggregate counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		agg := stats.NewAggregator(store, zap.NewNop())
		if err := agg.Start(ctx); err != nil {
			return err
		}
		defer agg.Stop()
		// Give the initial subscriptions a moment to deliver.
		time.Sleep(200 * time.Millisecond)

		printTotals(agg.Totals())
		return nil
	},
}

var statsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Recompute the aggregate counters from the underlying data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		agg := stats.NewAggregator(store, zap.NewNop())
		totals, err := agg.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		fmt.Println("aggregate counters repaired")
		printTotals(totals)
		return nil
	},
}

func printTotals(t stats.Totals) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "COUNTER\tVALUE\n")
	fmt.Fprintf(w, "views\t%d\n", t.TotalViews)
	fmt.Fprintf(w, "resources\t%d\n", t.TotalResources)
	fmt.Fprintf(w, "verified users\t%d\n", t.TotalVerifiedUsers)
	w.Flush()
}

// ── users ────────────────────────────────────────────────────────────────────

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect registered users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		snap, err := store.Read(ctx, "users")
		if err != nil {
			return fmt.Errorf("read users: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "UID\tNAME\tEMAIL\tPROFILE\tLAST LOGIN\n")
		count := 0
		for _, child := range snap.Children() {
			u := child.Snap
			hasProfile := "-"
			if u.Child("profile").Exists() {
				hasProfile = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				child.Key,
				u.Child("displayName").String(),
				u.Child("email").String(),
				hasProfile,
				formatMillis(u.Child("lastLoginAt").Int()),
			)
			count++
		}
		w.Flush()
		fmt.Printf("\n%d user(s)\n", count)
		return nil
	},
}

// ── resources ────────────────────────────────────────────────────────────────

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Inspect the resource catalog",
}

var resourcesListCmd = &cobra.Command{
	Use:   "list <notes|papers|dcet>",
	Short: "List a category's resources, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := args[0]
		switch category {
		case catalog.CategoryNotes, catalog.CategoryPapers, catalog.CategoryDCET:
		default:
			return fmt.Errorf("unknown category %q (want notes, papers, or dcet)", category)
		}

		ctx := cmd.Context()
		store, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		cat := catalog.New(store, zap.NewNop())
		resources, err := cat.List(ctx, category)
		if err != nil {
			return fmt.Errorf("list %s: %w", category, err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tTITLE\tFOLDER\tPARENT\tBRANCH\tYEAR\n")
		for _, r := range resources {
			folder := "-"
			if r.IsFolder {
				folder = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Title, folder, r.ParentID, orDash(r.Branch), orDash(r.AcademicYear))
		}
		w.Flush()
		fmt.Printf("\n%d resource(s)\n", len(resources))
		return nil
	},
}

// ── logs ─────────────────────────────────────────────────────────────────────

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the admin audit log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		rec := auditlog.NewRecorder(store, zap.NewNop())
		entries, err := rec.List(ctx)
		if err != nil {
			return fmt.Errorf("list logs: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "WHEN\tADMIN\tACTION\tSECTION\tDETAILS\n")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				formatMillis(e.Timestamp), e.AdminEmail, e.Action, e.Section, e.Details)
		}
		w.Flush()
		fmt.Printf("\n%d entr(ies)\n", len(entries))
		return nil
	},
}

// ── seed ─────────────────────────────────────────────────────────────────────

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the catalog with development sample data",
	Long: `Seed creates a small realistic resource tree for development: a few
branches and syllabuses, one folder per category, and a handful of resources.
Running twice adds a second copy; seed does not deduplicate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		cat := catalog.New(store, zap.NewNop())

		for _, b := range []string{"Computer Science", "Mechanical", "Electronics"} {
			if _, err := cat.AddBranch(ctx, b); err != nil {
				return fmt.Errorf("seed branch %q: %w", b, err)
			}
		}
		for _, s := range []string{"2021 Scheme", "2022 Scheme"} {
			if _, err := cat.AddSyllabus(ctx, s); err != nil {
				return fmt.Errorf("seed syllabus %q: %w", s, err)
			}
		}

		folderID, err := cat.Create(ctx, catalog.CategoryNotes, catalog.Resource{
			Title:    "Semester 3",
			IsFolder: true,
		})
		if err != nil {
			return fmt.Errorf("seed folder: %w", err)
		}

		seeds := []struct {
			category string
			res      catalog.Resource
		}{
			{catalog.CategoryNotes, catalog.Resource{
				Title: "Data Structures Module 1", URL: "https://drive.example.com/ds-m1",
				ParentID: folderID, Branch: "Computer Science", AcademicYear: "2nd Year", Chapter: "Module 1",
			}},
			{catalog.CategoryNotes, catalog.Resource{
				Title: "Engineering Maths", URL: "https://drive.example.com/maths",
				AcademicYear: "Common",
			}},
			{catalog.CategoryPapers, catalog.Resource{
				Title: "DSA Model Paper", URL: "https://drive.example.com/dsa-2023",
				Branch: "Computer Science", Year: "2023", Type: "Model",
			}},
			{catalog.CategoryDCET, catalog.Resource{
				Title: "DCET Aptitude Set", URL: "https://drive.example.com/dcet-apt",
				Topic: "Aptitude",
			}},
		}
		for _, s := range seeds {
			if _, err := cat.Create(ctx, s.category, s.res); err != nil {
				return fmt.Errorf("seed %s %q: %w", s.category, s.res.Title, err)
			}
		}

		fmt.Printf("seeded %d resources, 1 folder, 3 branches, 2 syllabuses\n", len(seeds))
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hubctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hubctl %s\n", version)
	},
}

// ── helpers ──────────────────────────────────────────────────────────────────

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
