package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/commons/internal/client"
	"github.com/alphabot-ai/commons/internal/observability"
	"github.com/alphabot-ai/commons/internal/seed"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("url", "http://localhost:8080", "Base URL of a running server")
	seedCmd.Flags().Int64("seed", 0, "Random seed (default: current time)")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a running server with demo members, communities and comments",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	url, _ := cmd.Flags().GetString("url")
	n, _ := cmd.Flags().GetInt64("seed")
	if n == 0 {
		n = time.Now().UnixNano()
	}

	logger, err := observability.NewLogger(os.Stderr, "info", "text")
	if err != nil {
		return err
	}
	c := client.New(strings.TrimSuffix(url, "/"))
	sum, err := seed.Run(cmd.Context(), c, rand.New(rand.NewSource(n)), logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Seeded %s: %d members, %d communities, %d comments, %d votes, %d reports\n",
		url, sum.Members, sum.Communities, sum.Comments, sum.Votes, sum.Reports)
	return nil
}
