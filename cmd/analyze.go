package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/makeuplens/makeuplens/internal/analysis"
	"github.com/makeuplens/makeuplens/internal/portfolio"
	"github.com/makeuplens/makeuplens/internal/workflow"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		save    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a makeup photo and list detected products with ingredients",
		Long: `Submits a photo to the analysis service and prints the identified
products with their ingredient lists.

With --save, every detected product is added to the portfolio afterwards.`,
		Example: `  # Analyze a photo
  makeuplens analyze photo.jpg

  # Analyze against a self-hosted service that requires a key
  makeuplens analyze photo.jpg --endpoint http://localhost:8000 --api-key sk-... --require-key

  # Analyze and save every detected product
  makeuplens analyze photo.jpg --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			imagePath := args[0]
			raw, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("failed to read image file: %w", err)
			}

			sync := portfolio.NewSynchronizer(cfg.EndpointBase)
			controller := workflow.New(analysis.NewOrchestrator(cfg), sync)

			if err := controller.SelectImage(raw, filepath.Base(imagePath)); err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			// Advisory reachability check; an unreachable service still gets
			// the real request (and the real error).
			if err := analysis.NewClient(cfg.EndpointBase).Health(ctx); err != nil {
				slog.Warn("Analysis service health check failed", "endpoint", cfg.EndpointBase, "err", err)
			}

			result, err := controller.Analyze(ctx)
			if err != nil {
				return err
			}

			if err := printOutput(cmd, result); err != nil {
				return err
			}

			if save {
				for _, product := range result.Products {
					if err := sync.Add(ctx, product); err != nil {
						return fmt.Errorf("failed to save %q: %w", product.Name, err)
					}
					slog.Info("Saved product to portfolio", "name", product.Name, "brand", product.Brand)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Add every detected product to the portfolio")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline for the analysis request (0 for none)")

	return cmd
}
