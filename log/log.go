package log

import (
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/types"
)

// Warning is one non-fatal problem found while loading data for an entity.
type Warning struct {
	Entity    types.EntityID
	Component string
	Message   string
}

func loadComponentIntoArrayLogger(c component.Desc, arrayLogger *zerolog.Array) *zerolog.Array {
	dictLogger := zerolog.Dict()
	dictLogger = dictLogger.Int("component_id", int(c.ID()))
	dictLogger = dictLogger.Str("component_path", c.Path())
	return arrayLogger.Dict(dictLogger)
}

func loadComponentsToEvent(zeroLoggerEvent *zerolog.Event, components []component.Desc) *zerolog.Event {
	zeroLoggerEvent.Int("total_components", len(components))
	arrayLogger := zerolog.Arr()
	for _, c := range components {
		arrayLogger = loadComponentIntoArrayLogger(c, arrayLogger)
	}
	return zeroLoggerEvent.Array("components", arrayLogger)
}

func loadEntityIntoEvent(
	zeroLoggerEvent *zerolog.Event, entityID types.EntityID, archID types.ArchetypeID,
	components []component.Desc,
) *zerolog.Event {
	arrayLogger := zerolog.Arr()
	for _, c := range components {
		arrayLogger = loadComponentIntoArrayLogger(c, arrayLogger)
	}
	zeroLoggerEvent.Array("components", arrayLogger)
	zeroLoggerEvent.Str("entity_id", entityID.String())
	return zeroLoggerEvent.Int("archetype_id", int(archID))
}

// Components logs every component registered in r, ordered by id.
func Components(logger *zerolog.Logger, r *component.Registry, level zerolog.Level) {
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent = loadComponentsToEvent(zeroLoggerEvent, r.Components())
	zeroLoggerEvent.Send()
}

// Entity logs entity info given an entityID.
func Entity(
	logger *zerolog.Logger,
	level zerolog.Level, entityID types.EntityID, archID types.ArchetypeID,
	components []component.Desc,
) {
	if logger.GetLevel() > level {
		return
	}
	zeroLoggerEvent := logger.WithLevel(level)
	loadEntityIntoEvent(zeroLoggerEvent, entityID, archID, components).Send()
}

// Warnings logs up to limit warnings, one event each, followed by a summary event when some were
// suppressed. A negative limit logs all of them.
func Warnings(logger *zerolog.Logger, warnings []Warning, limit int) {
	for i, w := range warnings {
		if limit >= 0 && i >= limit {
			logger.Warn().
				Int("suppressed", len(warnings)-limit).
				Int("total_warnings", len(warnings)).
				Msg("further warnings suppressed")
			return
		}
		logger.Warn().
			Str("entity_id", w.Entity.String()).
			Str("component", w.Component).
			Msg(w.Message)
	}
}

// CreateTraceLogger returns a child logger tagging every event with trace_id, so one operation can be followed
// across packages.
func CreateTraceLogger(logger *zerolog.Logger, traceID string) *zerolog.Logger {
	newLogger := logger.With().Str("trace_id", traceID).Logger()
	return &newLogger
}
