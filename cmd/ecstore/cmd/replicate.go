package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/server"
	"pkg.world.dev/world-engine/ecstore/snapshot"
	"pkg.world.dev/world-engine/ecstore/storage/redis"
)

func (a *app) storage() redis.Storage {
	return redis.NewRedisStorage(redis.Options{
		Addr:     a.cfg.RedisAddress,
		Password: a.cfg.RedisPassword,
	}, a.cfg.ReplicationKey, redis.WithSnapshotOptions(a.snapshotOptions()...))
}

func (a *app) publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <schema.toml> <snapshot.json>",
		Short: "Publish component schemas and a snapshot to Redis",
		Args:  cobra.ExactArgs(2), //nolint:gomnd // schema and snapshot
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(args[0])
			if err != nil {
				return err
			}
			data, err := readFile(args[1])
			if err != nil {
				return err
			}
			storage := a.storage()
			defer storage.Close() //nolint:errcheck // best effort

			ctx := cmd.Context()
			if err := redis.PublishSchemas(ctx, registry, &storage.SchemaStorage); err != nil {
				return err
			}
			w, warnings, err := snapshot.Deserialize(registry, data, a.snapshotOptions()...)
			if err != nil {
				return err
			}
			patch, err := storage.Publish(ctx, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d entities with %d warnings\n%s\n",
				w.Len(), len(warnings), patch)
			return nil
		},
	}
}

func (a *app) fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <schema.toml>",
		Short: "Print the latest snapshot published to Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(args[0])
			if err != nil {
				return err
			}
			storage := a.storage()
			defer storage.Close() //nolint:errcheck // best effort

			w, _, err := storage.Fetch(cmd.Context(), registry)
			if err != nil {
				return err
			}
			data, err := snapshot.Serialize(w, a.snapshotOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var fromRedis bool
	cmd := &cobra.Command{
		Use:   "serve <schema.toml> [snapshot.json]",
		Short: "Serve the debug endpoints over a world loaded from a snapshot",
		Args:  cobra.RangeArgs(1, 2), //nolint:gomnd // optional snapshot
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(args[0])
			if err != nil {
				return err
			}
			w, err := a.loadWorld(cmd.Context(), registry, args[1:], fromRedis)
			if err != nil {
				return err
			}

			srv := server.New(gamestate.NewShared(w),
				server.WithLogger(log.Logger),
				server.WithSnapshotOptions(a.snapshotOptions()...))
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Serve(a.cfg.DebugAddress)
			}()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return srv.Shutdown()
			}
		},
	}
	cmd.Flags().BoolVar(&fromRedis, "from-redis", false, "load the latest snapshot published to Redis")
	return cmd
}

func (a *app) loadWorld(
	ctx context.Context, registry *component.Registry, files []string, fromRedis bool,
) (*gamestate.World, error) {
	switch {
	case fromRedis:
		storage := a.storage()
		defer storage.Close() //nolint:errcheck // best effort
		w, _, err := storage.Fetch(ctx, registry)
		return w, err
	case len(files) > 0:
		data, err := readFile(files[0])
		if err != nil {
			return nil, err
		}
		w, _, err := snapshot.Deserialize(registry, data, a.snapshotOptions()...)
		return w, err
	default:
		return gamestate.NewWorld(registry, gamestate.WithLogger(log.Logger),
			gamestate.WithNamespace(a.cfg.Namespace)), nil
	}
}
