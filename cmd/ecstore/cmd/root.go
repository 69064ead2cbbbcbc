// Package cmd implements the ecstore command line: offline snapshot tooling plus Redis replication and a
// debug server for a world loaded from a snapshot.
package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/config"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/snapshot"
	"pkg.world.dev/world-engine/ecstore/statsd"
)

type app struct {
	configPath string
	cfg        config.Config
	cache      *snapshot.ValueCache
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ecstore",
		Short:         "Inspect, validate and replicate entity/component snapshots",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	addConfigFlags(root.PersistentFlags(), a)
	root.AddCommand(
		a.validateCmd(),
		a.diffCmd(),
		a.schemaCmd(),
		a.queryCmd(),
		a.publishCmd(),
		a.fetchCmd(),
		a.serveCmd(),
	)
	return root
}

func addConfigFlags(fs *pflag.FlagSet, a *app) {
	fs.StringVar(&a.configPath, "config", os.Getenv(config.EnvPrefix+"_CONFIG"),
		"config file (toml, yaml or json); ECSTORE_* environment variables override it")
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	log.Logger = cfg.Logger()
	zerolog.SetGlobalLevel(log.Logger.GetLevel())
	if cfg.ValueCacheBytes > 0 {
		a.cache = snapshot.NewValueCache(cfg.ValueCacheBytes)
	}
	if cfg.StatsdAddress != "" {
		if err := statsd.Init(cfg.StatsdAddress, nil); err != nil {
			return eris.Wrap(err, "failed to start statsd client")
		}
	}
	return nil
}

// snapshotOptions applies the configured logging, warning cap, namespace and value cache.
func (a *app) snapshotOptions() []snapshot.Option {
	opts := []snapshot.Option{
		snapshot.WithLogger(log.Logger),
		snapshot.WithMaxLoggedWarnings(a.cfg.MaxLoggedWarnings),
		snapshot.WithWorldOptions(
			gamestate.WithLogger(log.Logger),
			gamestate.WithNamespace(a.cfg.Namespace),
		),
	}
	if a.cache != nil {
		opts = append(opts, snapshot.WithValueCache(a.cache))
	}
	return opts
}

func loadRegistry(schemaPath string) (*component.Registry, error) {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read schema %q", schemaPath)
	}
	r := component.NewRegistry()
	if _, err := component.LoadSchema(r, data); err != nil {
		return nil, err
	}
	return r, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %q", path)
	}
	return data, nil
}
