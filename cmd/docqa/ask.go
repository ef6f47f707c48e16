package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/helper"
	"docqa/internal/models"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question from the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer and sources as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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
	turn, err := s.Ask(ctx, args[0])
	if err != nil {
		return err
	}

	if askJSON {
		return helper.PrettyPrint(cmd.OutOrStdout(), turn.Export())
	}
	printTurn(cmd, turn)
	return nil
}

func printTurn(cmd *cobra.Command, turn models.Turn) {
	cmd.Println(turn.Answer)
	sources := turn.Export().Sources
	if len(sources) == 0 {
		return
	}
	cmd.Println()
	for i, src := range sources {
		page := "N/A"
		if src.Page != nil {
			page = fmt.Sprint(*src.Page)
		}
		cmd.Printf("Source %d: %s, page %s\n", i+1, src.Source, page)
	}
}
