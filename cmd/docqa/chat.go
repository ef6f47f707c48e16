package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/helper"
	"docqa/internal/tui"
)

var chatLogFile string

var chatCmd = &cobra.Command{
	Use:   "chat [files...]",
	Short: "Chat with your documents in the terminal",
	Long: `Opens an interactive chat. Files given as arguments are indexed first.
Inside the chat, /clear forgets the conversation, /export [path] saves it as
JSON and /quit leaves.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "docqa.log", "where logs go while the chat is open")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logOut, err := os.OpenFile(chatLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logOut.Close()
	// the terminal belongs to the chat screen
	helper.SetupLogger(cfg.App.LogLevel, "json", logOut)

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

	records, err := a.engine.Count(ctx)
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("%d chunk(s) indexed", records)
	if len(args) > 0 {
		report, err := s.Process(ctx, args)
		if err != nil {
			return err
		}
		summary = fmt.Sprintf("Indexed %d document(s) into %d chunk(s) from %d file(s)", report.Documents, report.Chunks, len(args)-len(report.Skipped))
		for _, skipped := range report.Skipped {
			summary += ", skipped " + filepath.Base(skipped)
		}
	}

	_, err = tea.NewProgram(tui.New(ctx, s, summary), tea.WithAltScreen()).Run()
	return err
}
