package main

import (
	"context"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector store",
}

var indexExportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Write the collection to a backup file",
	Long: `Writes the chromem collection to a file, gzip compressed when
vector_store.compress is set and encrypted when vector_store.encryption_key is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexExport,
}

var indexImportCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Replace the collection with a backup file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexImport,
}

var indexResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every indexed chunk",
	Args:  cobra.NoArgs,
	RunE:  runIndexReset,
}

func init() {
	indexCmd.AddCommand(indexExportCmd, indexImportCmd, indexResetCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, chromem, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if chromem == nil {
		return errNeedsChromem
	}

	if err := chromem.Export(ctx, args[0]); err != nil {
		return err
	}
	n, _ := store.Count(ctx)
	cmd.Printf("Exported %d chunk(s) to %s\n", n, args[0])
	return nil
}

func runIndexImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, chromem, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if chromem == nil {
		return errNeedsChromem
	}

	if err := chromem.Import(ctx, args[0]); err != nil {
		return err
	}
	n, _ := store.Count(ctx)
	cmd.Printf("Imported %d chunk(s) from %s\n", n, args[0])
	return nil
}

func runIndexReset(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(ctx); err != nil {
		return err
	}
	cmd.Println("Vector store cleared.")
	return nil
}
