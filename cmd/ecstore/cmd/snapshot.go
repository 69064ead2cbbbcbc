package cmd

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pkg.world.dev/world-engine/ecstore/codec"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	ecslog "pkg.world.dev/world-engine/ecstore/log"
	"pkg.world.dev/world-engine/ecstore/search/cql"
	"pkg.world.dev/world-engine/ecstore/snapshot"
	"pkg.world.dev/world-engine/ecstore/types"
)

func (a *app) validateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <schema.toml> <snapshot.json>",
		Short: "Load a snapshot against a component schema and report problems",
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
			out := cmd.OutOrStdout()

			var w *gamestate.World
			var warnings snapshot.Warnings
			if strict {
				w, err = snapshot.DeserializeStrict(registry, data, a.snapshotOptions()...)
			} else {
				w, warnings, err = snapshot.Deserialize(registry, data, a.snapshotOptions()...)
			}
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				fmt.Fprintf(out, "warning: entity %s component %q: %s\n", warning.Entity, warning.Component, warning.Message)
			}
			fmt.Fprintf(out, "%d entities, %d archetypes, %d warnings\n", w.Len(), len(w.Archetypes()), len(warnings))
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first invalid entity or component")
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <a.json> <b.json>",
		Short: "Print the JSON patch turning snapshot a into snapshot b",
		Args:  cobra.ExactArgs(2), //nolint:gomnd // two snapshots
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := readFile(args[0])
			if err != nil {
				return err
			}
			next, err := readFile(args[1])
			if err != nil {
				return err
			}
			patch, err := snapshot.Diff(prev, next)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(patch))
			return nil
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <schema.toml>",
		Short: "Print the JSON schema of every component declared in a schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(args[0])
			if err != nil {
				return err
			}
			ecslog.Components(&log.Logger, registry, zerolog.DebugLevel)
			schemas := make(map[string]codec.RawMessage, registry.Len())
			for _, desc := range registry.Components() {
				schema, err := desc.Schema()
				if err != nil {
					return err
				}
				schemas[desc.Path()] = schema
			}
			bz, err := codec.Encode(schemas)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <schema.toml> <snapshot.json> <cql>",
		Short: "Print the ids of the snapshot entities matching a CQL expression",
		Args:  cobra.ExactArgs(3), //nolint:gomnd // schema, snapshot and query
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(args[0])
			if err != nil {
				return err
			}
			data, err := readFile(args[1])
			if err != nil {
				return err
			}
			filter, err := cql.ParseForRegistry(args[2], registry)
			if err != nil {
				return err
			}
			w, _, err := snapshot.Deserialize(registry, data, a.snapshotOptions()...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ids := w.Search(filter).Collect()
			slices.SortFunc(ids, types.Compare)
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}
