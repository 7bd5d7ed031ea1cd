package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"gridos/internal/config"
	"gridos/internal/transport"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Inspect the shared message mailbox",
	Long: `Opens the configured store-and-forward database and prints the
number of undelivered packets per tag. Useful when several gridos processes
share one mailbox and traffic seems to go missing.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Transport.Path == "" {
		return fmt.Errorf("no transport.path configured; nothing to inspect")
	}

	store, err := transport.Open(cfg.Transport.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.PendingByTag()
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Printf("%s: mailbox empty\n", cfg.Transport.Path)
		return nil
	}

	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		marker := " "
		if tag == cfg.Transport.Tag {
			marker = "*"
		}
		fmt.Printf("%s %-16s %d pending\n", marker, tag, counts[tag])
	}
	return nil
}
