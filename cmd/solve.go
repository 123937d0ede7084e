package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/buildopt/app"
	"github.com/kilianp07/buildopt/config"
	coremon "github.com/kilianp07/buildopt/core/monitoring"
	"github.com/kilianp07/buildopt/infra/logger"
	"github.com/kilianp07/buildopt/infra/monitoring"
)

var (
	problemType string
	exportDir   string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Formulate and solve the configured building problem",
	RunE:  solve,
}

func init() {
	solveCmd.Flags().StringVar(&problemType, "problem", "", "problem type overriding problem.type")
	solveCmd.Flags().StringVarP(&exportDir, "out", "o", "", "result directory overriding export.dir")
	rootCmd.AddCommand(solveCmd)
}

func solve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if problemType != "" {
		cfg.Problem.Type = problemType
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if exportDir != "" {
		cfg.Export.Dir = exportDir
	}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	defer coremon.Flush(2 * time.Second)
	defer coremon.Recover()

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Run(ctx)
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s objective=%g operation_cost=%g investment_cost=%g\n",
			res.Kind, res.Status, res.Objective, res.OperationCost, res.InvestmentCost)
	}
	if err != nil {
		return err
	}
	if cfg.Metrics.PrometheusAddr != "" {
		logger.New("main").Infof("serving metrics on %s until interrupted", cfg.Metrics.PrometheusAddr)
		<-ctx.Done()
	}
	return nil
}
