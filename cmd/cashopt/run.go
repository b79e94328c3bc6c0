package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"inventory-intel/internal/models"
	"inventory-intel/internal/report"
	"inventory-intel/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify every active variant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		stats, err := application.Runner.RunClassification(ctx)
		if err != nil {
			return reportRunError(models.EngineClassification, err)
		}
		printStats(stats)
		return nil
	},
}

var velocityCmd = &cobra.Command{
	Use:   "velocity",
	Short: "Recompute sales velocity from the trailing sales window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		stats, err := application.Runner.RunVelocity(ctx)
		if err != nil {
			return reportRunError(models.EngineVelocity, err)
		}
		printStats(stats)
		return nil
	},
}

var clearanceCmd = &cobra.Command{
	Use:   "clearance",
	Short: "Generate clearance pricing recommendations",
	Long: `Generate a clearance batch and cache it as the latest one.

Without --mode the pricing mode follows cash adequacy and seasonal pressure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxItems, _ := cmd.Flags().GetInt("max-items")
		mode, _ := cmd.Flags().GetString("mode")

		ctx, cancel := commandContext()
		defer cancel()

		batch, err := application.Runner.RunClearance(ctx, maxItems, mode)
		if err != nil {
			return reportRunError(models.EngineClearance, err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %d recommendations (%s mode), avg discount %.1f%%, recovery $%.2f, ~%d weeks\n",
			green("✓"), len(batch.Recommendations), batch.Mode, batch.AverageDiscount,
			batch.TotalRecoveryPotential, batch.EstimatedClearanceWeeks)
		for _, r := range batch.Recommendations {
			fmt.Printf("  %-20s %6.2f -> %6.2f  (-%4.1f%%)  urgency %3.0f\n",
				r.SKU, r.CurrentPrice, r.RecommendedPrice, r.DiscountPercentage, r.UrgencyScore)
		}

		if xlsx, _ := cmd.Flags().GetString("xlsx"); xlsx != "" {
			if err := report.SaveClearance(xlsx, batch); err != nil {
				return fmt.Errorf("failed to write %s: %w", xlsx, err)
			}
			fmt.Printf("%s wrote %s\n", green("✓"), xlsx)
		}
		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Generate, store and publish cash impact alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		result, err := application.Runner.RunAlerts(ctx)
		if err != nil {
			return reportRunError(models.EngineAlerts, err)
		}
		printAlerts(result)
		return nil
	},
}

var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run classification, velocity and alerts in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		result, err := application.Runner.RunFull(ctx)
		if result != nil {
			if result.Classification != nil {
				printStats(result.Classification)
			}
			if result.Velocity != nil {
				printStats(result.Velocity)
			}
			if result.Alerts != nil {
				printAlerts(result.Alerts)
			}
		}
		if err != nil {
			return reportRunError(models.EngineFull, err)
		}
		return nil
	},
}

func init() {
	clearanceCmd.Flags().Int("max-items", 50, "Maximum number of recommendations")
	clearanceCmd.Flags().String("mode", "", "Force a pricing mode (emergency, aggressive, conservative)")
	clearanceCmd.Flags().String("xlsx", "", "Also write the batch to this xlsx file")

	rootCmd.AddCommand(classifyCmd, velocityCmd, clearanceCmd, alertsCmd, fullCmd)
}

func printStats(stats *models.RunStats) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	icon := green("✓")
	if stats.Errors > 0 {
		icon = yellow("⚠")
	}
	fmt.Printf("%s %s: processed %d, updated %d, skipped %d, errors %d (%s)\n",
		icon, stats.Engine, stats.Processed, stats.Updated, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond))
}

func printAlerts(result *service.AlertRunResult) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	for _, a := range result.Alerts {
		label := gray(a.Priority)
		switch a.Priority {
		case models.PriorityCritical:
			label = red(a.Priority)
		case models.PriorityHigh:
			label = yellow(a.Priority)
		}
		fmt.Printf("  [%s] %s (impact $%.2f)\n", label, a.Title, a.CashImpact)
	}

	s := result.Summary
	fmt.Printf("%d alerts, %d critical, $%.2f at risk, $%.2f recoverable, cash %s, %.1f weeks of runway\n",
		s.TotalAlerts, s.CriticalAlerts, s.TotalCashAtRisk, s.TotalRecoveryPotential, s.CashAdequacyStatus, s.WeeksOfRunway)
	for _, action := range s.TopRecommendedActions {
		fmt.Printf("  → %s\n", action)
	}
}

// reportRunError prints a lock conflict as a notice rather than a failure.
func reportRunError(engine string, err error) error {
	if errors.Is(err, service.ErrRunInProgress) {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %s run already in progress, skipping\n", yellow("ⓘ"), engine)
		return nil
	}
	return fmt.Errorf("%s run failed: %w", engine, err)
}
