package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/config"
	"github.com/goodtune/cortes/internal/report"
	"github.com/goodtune/cortes/internal/schedule"
	"github.com/spf13/cobra"
)

var (
	queryCriterion string
	queryAccount   string
	queryAt        string
	query12h       bool
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] ID",
	Short: "Show the scheduled cuts for an identifier",
	Long:  `Query the notifications service once and print the cut windows grouped by day, with their status and the remaining time of active cuts.`,
	Example: `  cortes query 0912345678
  cortes query --criterion CUENTA_CONTRATO --account 100200300 100200300
  cortes query --at "2024-06-10 14:00" --12h 0912345678`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	addQueryFlags(queryCmd)
	queryCmd.Flags().StringVar(&queryAt, "at", "", "Evaluate at this local time (YYYY-MM-DD HH:MM) - defaults to now")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(queryCmd)
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&queryCriterion, "criterion", "", "Search criterion (IDENTIFICACION, CUENTA_CONTRATO, CUEN) - defaults to display.default_criterion")
	cmd.Flags().StringVar(&queryAccount, "account", "", "Account to show when the result has several")
	cmd.Flags().BoolVar(&query12h, "12h", false, "Use the 12-hour clock")
}

// querySession holds what the one-shot commands need to run a query.
type querySession struct {
	cfg       *config.Config
	client    *cnel.Client
	builder   *report.Builder
	criterion cnel.Criterion
	id        string
	clock24h  bool
}

func newQuerySession(id string) (*querySession, error) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	criterion, err := cnel.ParseCriterion(queryCriterion, cnel.Criterion(cfg.Display.DefaultCriterion))
	if err != nil {
		return nil, err
	}
	if err := cnel.ValidateIdentifier(criterion, id); err != nil {
		return nil, err
	}

	logger := quietLogger()
	board := schedule.NewBoard(cfg.Location(), nil)

	return &querySession{
		cfg:       cfg,
		client:    newClient(cfg, logger),
		builder:   report.NewBuilder(board, logger),
		criterion: criterion,
		id:        id,
		clock24h:  cfg.Display.Clock24h && !query12h,
	}, nil
}

func (s *querySession) close() {
	s.builder.Board().Close()
}

func (s *querySession) fetch(ctx context.Context, now time.Time) (*report.Report, error) {
	res, err := s.client.Fetch(ctx, s.criterion, s.id)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(now, res, report.Options{
		Account:  queryAccount,
		Clock24h: s.clock24h,
	}), nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := newQuerySession(args[0])
	if err != nil {
		return err
	}
	defer s.close()

	now := time.Now().In(s.builder.Board().Location())
	if queryAt != "" {
		now, err = schedule.ParseCutDateTime(queryAt, s.builder.Board().Location())
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), config.Duration(s.cfg.Upstream.Timeout, 15*time.Second)+time.Second)
	defer cancel()

	rep, err := s.fetch(ctx, now)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	printReport(rep, now)
	return nil
}

// printReport prints a report with colors
func printReport(rep *report.Report, now time.Time) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	faint := color.New(color.Faint)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("CORTES DE LUZ")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Buscar por:  %s\n", rep.CriterionLabel)
	fmt.Printf("Número:      %s\n", rep.Identifier)
	fmt.Printf("Consultado:  %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Println()

	if rep.Empty {
		yellow.Println(rep.Message)
		fmt.Println()
		return
	}

	if d := rep.Details; d != nil {
		fmt.Printf("Cuenta:      %s\n", d.Account)
		if d.UniqueCode != "" {
			fmt.Printf("Código:      %s\n", d.UniqueCode)
		}
		if d.Feeder != "" {
			fmt.Printf("Alimentador: %s\n", d.Feeder)
		}
		fmt.Printf("Dirección:   %s\n", d.Address)
	}
	if rep.HasTabs() {
		faint.Printf("Cuentas:     %v (mostrando %s)\n", rep.Accounts, rep.ActiveAccount)
	}

	for _, g := range rep.Groups {
		fmt.Println()
		cyan.Println(g.Title)
		fmt.Printf("  Total horas sin luz: %s   Total horas con luz: %s\n", g.CutHours, g.AvailableHours)
		if g.Summary.Overbooked {
			yellow.Println("  Los cortes de este día suman más de 24 horas")
		}

		for _, w := range g.Windows {
			fmt.Printf("  %s - %s  ", w.Start, w.End)
			switch {
			case w.Error != "":
				faint.Printf("Horario no disponible (%s)\n", w.Error)
			case w.Status == schedule.StatusActive:
				red.Printf("%s Tiempo restante: %s\n", w.StatusLabel, w.Remaining)
			case w.Status == schedule.StatusAlreadyOccurred:
				green.Println(w.StatusLabel)
			default:
				yellow.Println(w.StatusLabel)
			}
			if w.Comment != "" {
				faint.Printf("      %s\n", w.Comment)
			}
		}
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
