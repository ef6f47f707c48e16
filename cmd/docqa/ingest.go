package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Index PDF and TXT files",
	Long: `Loads the given files, splits them into overlapping chunks and adds the
chunks to the vector store. Files with other extensions are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.sessions.Create(ctx)
	if err != nil {
		return err
	}
	report, err := s.Process(ctx, args)
	if err != nil {
		return err
	}

	cmd.Printf("Indexed %d document(s) into %d chunk(s).\n", report.Documents, report.Chunks)
	for _, skipped := range report.Skipped {
		cmd.Printf("Skipped unsupported file: %s\n", filepath.Base(skipped))
	}
	return nil
}
