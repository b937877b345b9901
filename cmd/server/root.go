package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tillerstead/tillerpro/internal/config"
	"github.com/tillerstead/tillerpro/internal/observability"
)

// app carries what PersistentPreRunE loads for every subcommand.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "tillerpro",
		Short:         "Tile renovation estimator: calculators, project sessions and quotes",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			// calc prints results on stdout, so its logs go to stderr.
			if cmd.Name() == "calc" {
				observability.Initialize(cfg.Logger, zapcore.Lock(os.Stderr))
			} else {
				observability.InitializeLogger(cfg.Logger)
			}
			a.log = observability.GetLogger()
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			observability.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (YAML)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newCalcCmd(a),
	)
	return root
}
