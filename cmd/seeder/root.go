package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yashrajoria/catalog-seeder/config"
	"github.com/yashrajoria/catalog-seeder/services"
)

// cli carries state shared by every subcommand.
type cli struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
	appOpts    []appOption
}

// persistent flag name -> config key
var flagKeys = map[string]string{
	"env":                "env",
	"store":              "store_backend",
	"seed-source":        "seed_source",
	"seed-dir":           "seed_dir",
	"kv":                 "kv_backend",
	"checksum-namespace": "checksum_namespace",
}

func newRootCmd(opts ...appOption) *cobra.Command {
	c := &cli{appOpts: opts}

	root := &cobra.Command{
		Use:   "seeder",
		Short: "Reconcile the catalog store with the seed files",
		Long: `seeder compares the bundled brands, categories and products seed files
against the remote catalog store and writes only what changed.

Runs are gated by persisted markers: a run happens when the seed was never
applied, when the required seed version changed, or when forced.`,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (yaml, json or toml)")
	pf.String("env", "", "environment: development or production")
	pf.String("store", "", "remote store: dynamodb, mongo, memory or none")
	pf.String("seed-source", "", "seed source: fs or s3")
	pf.String("seed-dir", "", "seed directory for the fs source")
	pf.String("kv", "", "marker and checksum backend: store, redis or memory")
	pf.String("checksum-namespace", "", "checksum namespace")

	root.AddCommand(
		c.newRunCommand(),
		c.newDryRunCommand(),
		c.newResetCommand(),
		c.newSettingsCommand(),
		c.newServeCommand(),
		c.newWatchCommand(),
		c.newTriggerCommand(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	config.LoadEnvFiles()

	v, err := config.NewViper(c.configFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	c.v = v
	c.cfg = config.FromViper(v)
	return c.cfg.Validate()
}

func (c *cli) openApp(ctx context.Context, out io.Writer) (*App, error) {
	return NewApp(ctx, c.cfg, out, c.appOpts...)
}

// runOptions builds orchestrator options from config defaults.
func (c *cli) runOptions(trigger string) services.RunOptions {
	return services.RunOptions{
		ChecksumNamespace: c.cfg.ChecksumNamespace,
		PruneMissing:      c.cfg.PruneMissing,
		Sources:           services.SourceNames{Extension: c.cfg.SeedExtension},
		Trigger:           trigger,
	}
}
