package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sellsync/internal/app"
	"sellsync/internal/config"
	"sellsync/internal/util"
	"sellsync/pkg/domain"
	"sellsync/pkg/fetch"
	"sellsync/pkg/syncer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "sellsync",
		Short:         "Reconcile a seller's catalog between eBay and Shopify",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "path to config file")
	root.AddCommand(
		newFetchCmd(&configPath),
		newDiffCmd(&configPath),
		newPushCmd(&configPath),
		newSyncCmd(&configPath),
	)
	return root
}

func buildApp(configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	util.InitLogger(cfg.LogLevel)
	return app.Build(cfg)
}

func newFetchCmd(configPath *string) *cobra.Command {
	var (
		platformName string
		all          bool
		save         bool
		pageCap      int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch listings from one or both platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			opts := fetch.Options{
				Sample:      !all,
				Persist:     save,
				Cap:         pageCap,
				Concurrency: a.FetchConcurrency,
			}
			ctx := cmd.Context()
			switch platformName {
			case string(domain.PlatformEbay):
				listings, err := a.Ebay.Run(ctx, opts)
				if err != nil {
					return err
				}
				slog.Info("ebay fetch done", "listings", len(listings))
			case string(domain.PlatformShopify):
				listings, err := a.Shopify.Run(ctx, opts)
				if err != nil {
					return err
				}
				slog.Info("shopify fetch done", "listings", len(listings))
			case "all":
				if err := a.Syncer.FetchAll(ctx, opts); err != nil {
					return err
				}
				slog.Info("fetch done for both platforms")
			default:
				return fmt.Errorf("unknown platform %q (want ebay, shopify or all)", platformName)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platformName, "platform", "all", "platform to fetch: ebay, shopify or all")
	cmd.Flags().BoolVar(&all, "all", false, "fetch the full catalog instead of a sample")
	cmd.Flags().BoolVar(&save, "save", true, "persist listings while fetching")
	cmd.Flags().IntVar(&pageCap, "cap", 0, "cap the number of pages fetched (0 = unlimited)")
	return cmd
}

func newDiffCmd(configPath *string) *cobra.Command {
	var csvDir string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compute the title diff between the two persisted catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			res, err := a.Syncer.DiffCatalogs(cmd.Context())
			if err != nil {
				return err
			}
			if csvDir != "" {
				if err := syncer.WriteDiffCSV(csvDir, res); err != nil {
					return err
				}
				slog.Info("diff exported", "dir", csvDir)
			}
			fmt.Printf("common: %d\nebay only: %d\nshopify only: %d\n",
				len(res.Common), len(res.LeftOnly), len(res.RightOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&csvDir, "csv", "", "directory to export diff CSV files into")
	return cmd
}

func newPushCmd(configPath *string) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push persisted eBay listings to Shopify",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			report, err := a.Syncer.PushCatalog(cmd.Context(), domain.PlatformEbay, domain.PlatformShopify, limit)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 0, "cap the number of listings pushed (0 = all)")
	return cmd
}

func newSyncCmd(configPath *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch both catalogs and push eBay listings to Shopify",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			report, err := a.Syncer.RunFullSync(cmd.Context(), fetch.Options{
				Sample:      !all,
				Concurrency: a.FetchConcurrency,
			})
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "sync the full catalog instead of a sample")
	return cmd
}

func printReport(report syncer.PushReport) {
	fmt.Printf("pushed: %d, failed: %d\n", report.Pushed, len(report.Failed))
	for _, failure := range report.Failed {
		fmt.Printf("  %s: %s\n", failure.ItemID, failure.Reason)
	}
}
