package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the admin user, rate config and product catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := runSeed(a, st, refresh)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d, updated %d\n", stats.Inserts, stats.Updates)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh-prices", false, "overwrite stored product prices with catalog prices")
	return cmd
}

func runSeed(a *app, st *stores, refresh bool) (seed.Stats, error) {
	catalog, err := pricing.LoadCatalog(a.cfg.Pricing.CatalogPath)
	if err != nil {
		return seed.Stats{}, err
	}
	stats, err := seed.Run(st.db, seed.Config{
		AdminEmail:    a.cfg.Admin.Email,
		AdminPassword: a.cfg.Admin.Password,
		Catalog:       catalog,
		RefreshPrices: refresh,
	})
	if err != nil {
		return seed.Stats{}, fmt.Errorf("seed: %w", err)
	}
	a.log.Info("seed complete", zap.Int("inserts", stats.Inserts), zap.Int("updates", stats.Updates))
	return stats, nil
}
