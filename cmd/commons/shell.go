package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/commons/internal/shell"
)

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().BoolP("verbose", "v", false, "Log forum operations to stderr")
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Use the forum interactively from the terminal",
	Long: `Open an interactive prompt over the configured store. Type "help" for
the list of commands.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".commons_history")
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var logs io.Writer
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logs = os.Stderr
	}
	b, _, err := openBackend(ctx, logs)
	if err != nil {
		return err
	}
	defer b.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "commons> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	sh := shell.New(b.state, rl, rl.Stdout())
	defer sh.Close()
	return sh.Run(ctx)
}
