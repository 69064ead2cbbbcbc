// Package redis persists component schemas and replicates world snapshots through Redis.
package redis

import (
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Storage struct {
	Namespace string
	Client    *redis.Client
	Log       zerolog.Logger
	SchemaStorage
	*Replicator
}

type Options = redis.Options

// NewRedisStorage connects to Redis and scopes every key under namespace.
func NewRedisStorage(options Options, namespace string, opts ...ReplicatorOption) Storage {
	client := redis.NewClient(&options)
	logger := log.Logger.With().Str("storage_namespace", namespace).Logger()
	return Storage{
		Namespace:     namespace,
		Client:        client,
		Log:           logger,
		SchemaStorage: NewSchemaStorage(client, namespace),
		Replicator:    NewReplicator(client, namespace, append([]ReplicatorOption{WithLogger(logger)}, opts...)...),
	}
}

func (r *Storage) Close() error {
	r.Log.Info().Msg("Closing storage connection.")
	if err := r.Client.Close(); err != nil {
		return eris.Wrap(err, "")
	}
	r.Log.Info().Msg("Successfully closed storage connection.")
	return nil
}
