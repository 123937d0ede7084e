package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/buildopt/api/runs"
	"github.com/kilianp07/buildopt/config"
	"github.com/kilianp07/buildopt/core/history"
	infrahistory "github.com/kilianp07/buildopt/infra/history"
	"github.com/kilianp07/buildopt/infra/logger"
)

var (
	runsLimit int
	runsKind  string
	serveAddr string
	apiToken  string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past runs from the history store",
	RunE:  listRuns,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run history over HTTP on /api/runs",
	RunE:  serveRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of most recent runs to show")
	runsCmd.Flags().StringVar(&runsKind, "problem", "", "only show runs of this problem type")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&apiToken, "token", "", "bearer token required by the API")
	rootCmd.AddCommand(runsCmd, serveCmd)
}

func openHistory() (history.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.History.Path == "" {
		return nil, errors.New("history.path is not configured")
	}
	return infrahistory.Open(cfg.History)
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recs, err := store.Query(cmd.Context(), history.Query{Kind: runsKind, Limit: runsLimit})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tPROBLEM\tSTATUS\tOBJECTIVE\tSOLVE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%.3fs\n",
			r.Timestamp.Format(time.RFC3339), r.RunID, r.Kind, r.Status, r.Objective, r.SolveSeconds)
	}
	return tw.Flush()
}

func serveRuns(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	log := logger.New("api")
	mux := http.NewServeMux()
	mux.Handle("/api/runs", runs.NewHandler(store, apiToken))
	srv := &http.Server{Addr: serveAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api shutdown: %v", err)
		}
	}()
	log.Infof("serving run history on %s", serveAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
