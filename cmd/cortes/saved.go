package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/config"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/spf13/cobra"
)

var savedCriterion string

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage saved identifiers",
	Long:  `List, add and remove the identifiers remembered by the web UI and refreshed on schedule.`,
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved identifiers",
	Args:  cobra.NoArgs,
	RunE:  runSavedList,
}

var savedAddCmd = &cobra.Command{
	Use:     "add [flags] ID",
	Short:   "Save an identifier",
	Example: `  cortes saved add --criterion CUENTA_CONTRATO 100200300`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSavedAdd,
}

var savedRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove a saved identifier",
	Args:  cobra.ExactArgs(1),
	RunE:  runSavedRm,
}

var savedClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every saved identifier",
	Args:  cobra.NoArgs,
	RunE:  runSavedClear,
}

func init() {
	savedAddCmd.Flags().StringVar(&savedCriterion, "criterion", "", "Search criterion - defaults to display.default_criterion")

	savedCmd.AddCommand(savedListCmd)
	savedCmd.AddCommand(savedAddCmd)
	savedCmd.AddCommand(savedRmCmd)
	savedCmd.AddCommand(savedClearCmd)
	rootCmd.AddCommand(savedCmd)
}

// withIdentifiers opens the configured store and runs fn against it.
func withIdentifiers(fn func(ctx context.Context, cfg *config.Config, store storage.IdentifierStore) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Storage.Type == "memory" {
		color.New(color.FgYellow).Fprintln(os.Stderr, "⚠️  storage.type is memory: changes only last for this command")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return fn(ctx, cfg, store.Identifiers())
}

func runSavedList(cmd *cobra.Command, args []string) error {
	return withIdentifiers(func(ctx context.Context, cfg *config.Config, store storage.IdentifierStore) error {
		saved, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list identifiers: %w", err)
		}
		if len(saved) == 0 {
			fmt.Println("No saved identifiers")
			return nil
		}

		loc := cfg.Location()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCRITERION\tSAVED\tREFRESHED\tWINDOWS")
		for _, s := range saved {
			refreshed := "-"
			if !s.RefreshedAt.IsZero() {
				refreshed = s.RefreshedAt.In(loc).Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
				s.ID, s.Criterion, s.SavedAt.In(loc).Format("2006-01-02 15:04"), refreshed, s.Windows)
		}
		return tw.Flush()
	})
}

func runSavedAdd(cmd *cobra.Command, args []string) error {
	return withIdentifiers(func(ctx context.Context, cfg *config.Config, store storage.IdentifierStore) error {
		criterion, err := cnel.ParseCriterion(savedCriterion, cnel.Criterion(cfg.Display.DefaultCriterion))
		if err != nil {
			return err
		}
		id := strings.TrimSpace(args[0])
		if err := cnel.ValidateIdentifier(criterion, id); err != nil {
			return err
		}

		added, err := store.Save(ctx, storage.SavedIdentifier{
			ID:        id,
			Criterion: string(criterion),
			SavedAt:   time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to save identifier: %w", err)
		}

		if added {
			color.New(color.FgGreen).Printf("✅ Saved %s (%s)\n", id, criterion.Label())
		} else {
			fmt.Printf("%s is already saved\n", id)
		}
		return nil
	})
}

func runSavedRm(cmd *cobra.Command, args []string) error {
	return withIdentifiers(func(ctx context.Context, cfg *config.Config, store storage.IdentifierStore) error {
		err := store.Delete(ctx, args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s is not saved", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to remove identifier: %w", err)
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	})
}

func runSavedClear(cmd *cobra.Command, args []string) error {
	return withIdentifiers(func(ctx context.Context, cfg *config.Config, store storage.IdentifierStore) error {
		n, err := store.Clear(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear identifiers: %w", err)
		}
		fmt.Printf("Removed %d saved identifier(s)\n", n)
		return nil
	})
}
