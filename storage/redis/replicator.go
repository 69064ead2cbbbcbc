package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	ecslog "pkg.world.dev/world-engine/ecstore/log"
	"pkg.world.dev/world-engine/ecstore/snapshot"
	"pkg.world.dev/world-engine/ecstore/statsd"
)

var ErrNoSnapshot = eris.New("no snapshot has been published")

// Replicator ships whole-world snapshots to other processes. Publish stores the latest snapshot and
// broadcasts the patch from the previous one; Fetch rebuilds a world from the stored snapshot.
type Replicator struct {
	client    redis.Cmdable
	namespace string
	tracer    trace.Tracer
	logger    zerolog.Logger
	snapOpts  []snapshot.Option
}

type ReplicatorOption func(*Replicator)

func WithLogger(logger zerolog.Logger) ReplicatorOption {
	return func(r *Replicator) {
		r.logger = logger
	}
}

// WithSnapshotOptions is passed to every Serialize and Deserialize call.
func WithSnapshotOptions(opts ...snapshot.Option) ReplicatorOption {
	return func(r *Replicator) {
		r.snapOpts = append(r.snapOpts, opts...)
	}
}

func NewReplicator(client redis.Cmdable, namespace string, opts ...ReplicatorOption) *Replicator {
	r := &Replicator{
		client:    client,
		namespace: namespace,
		tracer:    otel.Tracer("ecstore"),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish serializes w, stores it as the latest snapshot and publishes the patch against the previously
// stored one on DiffChannel. Nothing is published when the snapshot did not change. It returns the patch.
func (r *Replicator) Publish(ctx context.Context, w *gamestate.World) (patch []byte, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "replication.publish")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, eris.ToString(err, true))
			span.RecordError(err)
		}
		span.End()
	}()
	logger := ecslog.CreateTraceLogger(&r.logger, span.SpanContext().TraceID().String())

	next, err := snapshot.Serialize(w, r.snapOpts...)
	if err != nil {
		return nil, err
	}
	prev, err := r.client.Get(ctx, snapshotKey(r.namespace)).Bytes()
	if eris.Is(err, redis.Nil) {
		prev = []byte("{}")
	} else if err != nil {
		return nil, eris.Wrap(err, "failed to read the previous snapshot")
	}
	patch, err = snapshot.Diff(prev, next)
	if err != nil {
		return nil, err
	}
	if string(patch) == "[]" {
		return patch, nil
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, snapshotKey(r.namespace), next, 0)
	pipe.Publish(ctx, DiffChannel(r.namespace), patch)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, eris.Wrap(err, "failed to publish snapshot")
	}
	statsd.EmitTiming(start, "replication.publish")
	logger.Debug().
		Str("namespace", r.namespace).
		Int("snapshot_bytes", len(next)).
		Int("patch_bytes", len(patch)).
		Msg("published snapshot")
	return patch, nil
}

// Fetch builds a new world over registry from the latest published snapshot.
func (r *Replicator) Fetch(
	ctx context.Context, registry *component.Registry,
) (w *gamestate.World, warnings snapshot.Warnings, err error) {
	ctx, span := r.tracer.Start(ctx, "replication.fetch")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, eris.ToString(err, true))
			span.RecordError(err)
		}
		span.End()
	}()
	logger := ecslog.CreateTraceLogger(&r.logger, span.SpanContext().TraceID().String())

	data, err := r.client.Get(ctx, snapshotKey(r.namespace)).Bytes()
	if eris.Is(err, redis.Nil) {
		return nil, nil, eris.Wrapf(ErrNoSnapshot, "namespace %q", r.namespace)
	} else if err != nil {
		return nil, nil, eris.Wrap(err, "failed to read snapshot")
	}
	opts := append(append([]snapshot.Option(nil), r.snapOpts...), snapshot.WithLogger(*logger))
	return snapshot.Deserialize(registry, data, opts...)
}
