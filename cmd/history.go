package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vidparse/internal/history"
	"vidparse/internal/media"
	"vidparse/internal/ui"
)

var (
	flagLimit  int
	flagSelect bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List parsed videos, or pick one to download again",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "rm",
	Short: "Pick a history entry and delete it",
	Args:  cobra.NoArgs,
	RunE:  historyRemoveRun,
}

func init() {
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 50, "Number of entries to show (-1 for all)")
	historyCmd.Flags().BoolVarP(&flagSelect, "select", "s", false, "Pick an entry with fzf and download it")
	historyCmd.AddCommand(historyRemoveCmd)
}

func loadHistory(ctx context.Context) (*history.Store, []media.HistoryEntry, error) {
	store, err := history.OpenDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("opening history: %w", err)
	}
	entries, err := store.List(ctx, flagLimit)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("loading history: %w", err)
	}
	return store, entries, nil
}

func historyRun(cmd *cobra.Command, args []string) error {
	store, entries, err := loadHistory(cmd.Context())
	if err != nil {
		return err
	}
	store.Close()

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history entries found.")
		return nil
	}

	items := history.FormatForDisplay(entries)
	if !flagSelect {
		for _, item := range items {
			fmt.Fprintln(cmd.OutOrStdout(), item)
		}
		return nil
	}

	idx, err := ui.Select("History", items)
	if errors.Is(err, ui.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}

	// Media URLs expire, so the page is parsed again.
	return fetchAndPlay(entries[idx].PageURL)
}

func historyRemoveRun(cmd *cobra.Command, args []string) error {
	store, entries, err := loadHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history entries found.")
		return nil
	}

	idx, err := ui.Select("Remove", history.FormatForDisplay(entries))
	if errors.Is(err, ui.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}

	e := entries[idx]
	ok, err := ui.Confirm(fmt.Sprintf("删除 %s?", e.VideoID))
	if err != nil || !ok {
		return err
	}
	if err := store.Remove(cmd.Context(), e.VideoID); err != nil {
		return fmt.Errorf("removing %s: %w", e.VideoID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", e.VideoID)
	return nil
}
