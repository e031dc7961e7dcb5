package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/makeuplens/makeuplens/internal/export"
	"github.com/makeuplens/makeuplens/internal/intake"
	"github.com/makeuplens/makeuplens/internal/models"
	"github.com/makeuplens/makeuplens/internal/portfolio"
	"github.com/spf13/cobra"
)

func newPortfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage the personal product portfolio",
		Long: `Commands for the portfolio kept on the analysis service: list saved
entries, add products, upload product photos, remove entries, and export
snapshots for offline use.`,
	}

	cmd.AddCommand(newPortfolioListCmd())
	cmd.AddCommand(newPortfolioAddCmd())
	cmd.AddCommand(newPortfolioUploadCmd())
	cmd.AddCommand(newPortfolioRemoveCmd())
	cmd.AddCommand(newPortfolioExportCmd())
	cmd.AddCommand(newPortfolioCatalogCmd())

	return cmd
}

func newSynchronizer() (*portfolio.Synchronizer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return portfolio.NewSynchronizer(cfg.EndpointBase), nil
}

func newPortfolioListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all saved portfolio entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, err := newSynchronizer()
			if err != nil {
				return err
			}
			if err := sync.Refresh(cmd.Context()); err != nil {
				return err
			}
			return printOutput(cmd, sync.Items())
		},
	}
}

func newPortfolioAddCmd() *cobra.Command {
	var product models.Product

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product entry by its fields",
		Example: `  makeuplens portfolio add --name "Rouge Dior Lipstick" --brand Dior \
    --category "Lip Color" --ingredient Mica --ingredient "Candelilla Wax"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, err := newSynchronizer()
			if err != nil {
				return err
			}
			if err := sync.Add(cmd.Context(), product); err != nil {
				return err
			}
			return printOutput(cmd, sync.Items())
		},
	}

	cmd.Flags().StringVar(&product.Name, "name", "", "Product name (required)")
	cmd.Flags().StringVar(&product.Brand, "brand", "", "Brand name (required)")
	cmd.Flags().StringVar(&product.Category, "category", "", "Product category (required)")
	cmd.Flags().StringVar(&product.Shade, "shade", "", "Shade")
	cmd.Flags().StringVar(&product.Description, "description", "", "Description")
	cmd.Flags().StringArrayVar(&product.Ingredients, "ingredient", nil, "Ingredient, repeatable, in display order")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("brand")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func newPortfolioUploadCmd() *cobra.Command {
	var name, brand, category string

	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload a product photo as a custom portfolio entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image file: %w", err)
			}

			handle, err := intake.SelectImage(raw, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			sync, err := newSynchronizer()
			if err != nil {
				return err
			}
			if err := sync.AddWithImage(cmd.Context(), handle, name, brand, category); err != nil {
				return err
			}
			return printOutput(cmd, sync.Items())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Product name (required)")
	cmd.Flags().StringVar(&brand, "brand", "", "Brand name")
	cmd.Flags().StringVar(&category, "category", "", "Product category")

	return cmd
}

func newPortfolioRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a portfolio entry by its server-assigned id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			sync, err := newSynchronizer()
			if err != nil {
				return err
			}
			if err := sync.Remove(cmd.Context(), id); err != nil {
				return err
			}
			return printOutput(cmd, sync.Items())
		},
	}
}

func newPortfolioExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the portfolio to a .parquet or .jsonl snapshot",
		Example: `  makeuplens portfolio export portfolio.parquet
  makeuplens portfolio export portfolio.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, err := newSynchronizer()
			if err != nil {
				return err
			}
			if err := sync.Refresh(cmd.Context()); err != nil {
				return err
			}
			return export.WritePortfolio(args[0], sync.Items())
		},
	}
}

func newPortfolioCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the service's reference catalog of known products",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			products, err := portfolio.NewClient(cfg.EndpointBase).Products(cmd.Context())
			if err != nil {
				return err
			}
			return printOutput(cmd, products)
		},
	}
}
