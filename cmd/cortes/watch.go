package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/config"
	"github.com/goodtune/cortes/internal/report"
	"github.com/spf13/cobra"
)

var watchEvery time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [flags] ID",
	Short: "Follow the countdown of an identifier in the terminal",
	Long:  `Redraw the schedule once per second until interrupted, querying the notifications service again at a fixed interval.`,
	Example: `  cortes watch 0912345678
  cortes watch --every 10m --12h 0912345678`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addQueryFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchEvery, "every", 5*time.Minute, "How often to query the notifications service again")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchEvery < time.Minute {
		return fmt.Errorf("--every must be at least 1m")
	}

	s, err := newQuerySession(args[0])
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := config.Duration(s.cfg.Upstream.Timeout, 15*time.Second) + time.Second
	loc := s.builder.Board().Location()

	var (
		res     *cnel.Result
		lastErr error
		fetched time.Time
	)

	refresh := func() {
		fctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		r, err := s.client.Fetch(fctx, s.criterion, s.id)
		fetched = time.Now()
		if err != nil {
			lastErr = err
			return
		}
		res, lastErr = r, nil
	}

	refresh()
	if res == nil {
		return fmt.Errorf("query failed: %w", lastErr)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		now := time.Now().In(loc)
		if now.Sub(fetched) >= watchEvery {
			refresh()
		}

		rep := s.builder.Build(now, res, report.Options{
			Account:  queryAccount,
			Clock24h: s.clock24h,
		})

		fmt.Print("\033[H\033[2J")
		printReport(rep, now)
		if lastErr != nil {
			color.New(color.FgRed).Printf("Última actualización fallida: %v\n", lastErr)
		}
		fmt.Printf("Próxima consulta: %s  (Ctrl-C para salir)\n", fetched.Add(watchEvery).In(loc).Format("15:04:05"))

		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
		}
	}
}
