// Package main is the qbom command-line interface for inspecting,
// scoring and exporting quantum experiment traces.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/csnp/qbom/internal/analysis"
	"github.com/csnp/qbom/internal/backup"
	"github.com/csnp/qbom/internal/config"
	"github.com/csnp/qbom/internal/export"
	"github.com/csnp/qbom/internal/store"
	"github.com/csnp/qbom/internal/trace"
	"github.com/csnp/qbom/pkg/logger"
)

var dataDir string

func main() {
	rootCmd := &cobra.Command{
		Use:           "qbom",
		Short:         "Invisible provenance capture for quantum experiments",
		Version:       trace.FormatVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default $QBOM_DATA_DIR or ~/.qbom)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(driftCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(paperCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(backupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the data directory from the flag or environment.
func loadConfig() (*config.Config, error) {
	if dataDir != "" {
		os.Setenv("QBOM_DATA_DIR", dataDir)
	}
	return config.Load()
}

func getStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.New(cfg.DataDir, zerolog.Nop())
}

func getStoreAndIndex() (*store.Store, *store.Index, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.DataDir, zerolog.Nop())
	if err != nil {
		return nil, nil, err
	}
	ix, err := store.OpenIndex(cfg.DataDir, zerolog.Nop())
	if err != nil {
		return nil, nil, err
	}
	return st, ix, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the data directory and search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, ix, err := getStoreAndIndex()
			if err != nil {
				return err
			}
			defer ix.Close()

			if err := ix.Reindex(st); err != nil {
				return err
			}

			count, err := st.Count()
			if err != nil {
				return err
			}
			fmt.Printf("Data directory: %s\n", cfg.DataDir)
			fmt.Printf("Traces: %d\n", count)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var limit int
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ix, err := getStoreAndIndex()
			if err != nil {
				return err
			}
			defer ix.Close()

			if err := ix.Reindex(st); err != nil {
				return err
			}

			var entries []store.Entry
			if query != "" {
				entries, err = ix.Search(query)
			} else {
				entries, err = ix.List(limit)
			}
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No traces found.")
				return nil
			}

			for _, e := range entries {
				name, backend, shots := "-", "-", "-"
				if e.Name != nil {
					name = *e.Name
				}
				if e.Backend != nil {
					backend = *e.Backend
				}
				if e.Shots != nil {
					shots = trace.FormatShots(*e.Shots) + " shots"
				}
				fmt.Printf("%s  %-20s  %-16s  %-12s  %s\n",
					e.ID, truncate(name, 20), backend, shots,
					e.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of traces to show")
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by ID, name or backend")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [trace-id]",
		Short: "Show trace details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t, err := st.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:           %s\n", t.ID)
			fmt.Printf("Created:      %s\n", t.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("Content hash: %s\n", t.ContentHash())
			fmt.Printf("Summary:      %s\n", t.Summary())

			if t.Metadata.Name != nil {
				fmt.Printf("Name:         %s\n", *t.Metadata.Name)
			}
			if t.Environment != nil {
				if sdk, ok := t.Environment.QuantumSDK(); ok {
					fmt.Printf("SDK:          %s\n", sdk)
				}
			}
			for _, c := range t.Circuits {
				fmt.Printf("Circuit:      %s\n", c.Summary())
			}
			if t.Hardware != nil {
				fmt.Printf("Hardware:     %s\n", t.Hardware.Summary())
				if t.Hardware.Calibration != nil {
					fmt.Printf("Calibrated:   %s\n", t.Hardware.Calibration.Timestamp.Format("2006-01-02 15:04:05 MST"))
				}
			}
			if t.Execution != nil {
				fmt.Printf("Shots:        %s\n", trace.FormatShots(t.Execution.Shots))
				if t.Execution.JobID != nil {
					fmt.Printf("Job ID:       %s\n", *t.Execution.JobID)
				}
			}
			if t.Result != nil {
				fmt.Printf("Result hash:  %s\n", t.Result.Hash)
			}
			return nil
		},
	}
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [trace-id]",
		Short: "Compute the reproducibility score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t, err := st.Load(args[0])
			if err != nil {
				return err
			}

			score := analysis.ComputeScore(t)
			fmt.Printf("Reproducibility: %s\n", score.Summary())
			if score.IsReproducible() {
				fmt.Println("This experiment should be reproducible.")
			} else {
				fmt.Println("This experiment is missing data needed for reproduction.")
			}
			fmt.Println()

			for _, c := range score.Components {
				marker := " "
				switch c.Status {
				case analysis.StatusComplete:
					marker = "+"
				case analysis.StatusPartial:
					marker = "~"
				case analysis.StatusMissing:
					marker = "-"
				}
				fmt.Printf("  [%s] %-14s %2d/%d\n", marker, c.Name, c.EarnedPoints, c.MaxPoints)
			}

			if len(score.Recommendations) > 0 {
				fmt.Println("\nRecommendations:")
				for _, rec := range score.Recommendations {
					fmt.Printf("  - %s\n", rec)
				}
			}
			return nil
		},
	}
}

func driftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drift [trace-id]",
		Short: "Estimate hardware drift since the experiment ran",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t, err := st.Load(args[0])
			if err != nil {
				return err
			}

			drift := analysis.AnalyzeDrift(t, nil)
			if drift == nil {
				return fmt.Errorf("trace %s has no hardware information", t.ID)
			}

			fmt.Println(drift.Summary())
			fmt.Printf("Reproduction feasibility: %s\n", drift.ReproductionFeasibility)
			if len(drift.Recommendations) > 0 {
				fmt.Println("\nRecommendations:")
				for _, rec := range drift.Recommendations {
					fmt.Printf("  - %s\n", rec)
				}
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	var publication bool

	cmd := &cobra.Command{
		Use:   "validate [trace-id]",
		Short: "Check a trace for completeness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t, err := st.Load(args[0])
			if err != nil {
				return err
			}

			var result analysis.ValidationResult
			if publication {
				result = analysis.ValidateForPublication(t)
			} else {
				result = analysis.ValidateTrace(t)
			}

			fmt.Println(result.Summary)
			for _, issue := range result.Issues {
				fmt.Printf("\n[%s] %s: %s\n", strings.ToUpper(string(issue.Level)), issue.Category, issue.Message)
				if issue.Fix != "" {
					fmt.Printf("  fix: %s\n", issue.Fix)
				}
			}

			if !result.IsValid {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&publication, "publication", false, "apply the stricter publication checks")
	return cmd
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [trace-id-1] [trace-id-2]",
		Short: "Explain why two runs may differ",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t1, err := st.Load(args[0])
			if err != nil {
				return err
			}
			t2, err := st.Load(args[1])
			if err != nil {
				return err
			}

			if t1.ContentHash() == t2.ContentHash() {
				fmt.Println("Traces capture the same experiment content.")
			} else {
				fmt.Println("Traces capture different experiment content.")
			}
			for _, explanation := range analysis.ExplainResultDifference(t1, t2) {
				fmt.Printf("  - %s\n", explanation)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var formatName string

	cmd := &cobra.Command{
		Use:   "export [trace-id] [output]",
		Short: "Export a trace to a file",
		Long:  "Export a trace to a file. Formats: " + formatList(),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t, err := st.Load(args[0])
			if err != nil {
				return err
			}

			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if err := export.WriteFile(t, args[1], format); err != nil {
				return err
			}
			fmt.Printf("Exported %s to %s (%s)\n", t.ID, args[1], format)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "json", "export format")
	return cmd
}

func paperCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paper [trace-id]",
		Short: "Generate a methods-section statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t, err := st.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Println(export.PaperStatement(t))
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [trace-id]",
		Short: "Verify a trace's internal consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return err
			}
			t, err := st.Load(args[0])
			if err != nil {
				return err
			}

			verification := export.Verify(t)
			for _, check := range verification.Checks {
				mark := "FAIL"
				if check.Passed {
					mark = "ok"
				}
				fmt.Printf("  [%4s] %s\n", mark, check.Name)
			}
			if verification.Authentic {
				fmt.Println("\nTrace is internally consistent.")
				return nil
			}
			fmt.Println("\nTrace failed verification.")
			os.Exit(1)
			return nil
		},
	}
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the trace files",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ix, err := getStoreAndIndex()
			if err != nil {
				return err
			}
			defer ix.Close()

			if err := ix.Reindex(st); err != nil {
				return err
			}
			count, err := ix.Count()
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d trace(s)\n", count)
			return nil
		},
	}
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage cloud backups of the trace store",
	}
	cmd.AddCommand(backupRunCmd())
	cmd.AddCommand(backupListCmd())
	cmd.AddCommand(backupRestoreCmd())
	return cmd
}

func getBackupService() (*backup.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Backup == nil || !cfg.Backup.Enabled {
		return nil, fmt.Errorf("backup is not configured (set BACKUP_S3_BUCKET and credentials)")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	st, err := store.New(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}
	client, err := backup.NewClient(cfg.Backup, log)
	if err != nil {
		return nil, err
	}
	return backup.NewService(st, client, cfg.Backup.RetentionCount, log), nil
}

func backupRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Upload a fresh backup archive and rotate old ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getBackupService()
			if err != nil {
				return err
			}
			return svc.Run(context.Background())
		},
	}
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup archives in the bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getBackupService()
			if err != nil {
				return err
			}

			backups, err := svc.ListBackups(context.Background())
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Println("No backups found.")
				return nil
			}
			for _, b := range backups {
				fmt.Printf("%s  %8d bytes  %dh old\n", b.Filename, b.SizeBytes, b.AgeHours)
			}
			return nil
		},
	}
}

func backupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive>",
		Short: "Download a backup archive and unpack its traces into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getBackupService()
			if err != nil {
				return err
			}
			restored, err := svc.Restore(context.Background(), args[0])
			if err != nil {
				return err
			}

			// Restored files are invisible to search until reindexed.
			st, ix, err := getStoreAndIndex()
			if err != nil {
				return err
			}
			defer ix.Close()
			if err := ix.Reindex(st); err != nil {
				return err
			}

			fmt.Printf("Restored %d trace(s) from %s\n", restored, args[0])
			return nil
		},
	}
}

func formatList() string {
	names := make([]string, 0, len(export.Formats()))
	for _, f := range export.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
