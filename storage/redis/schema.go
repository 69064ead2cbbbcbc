package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"

	"pkg.world.dev/world-engine/ecstore/component"
)

var (
	ErrNoSchemaFound  = eris.New("no schema found")
	ErrSchemaMismatch = eris.New("component schema does not match the published schema")
)

type SchemaStorage struct {
	Client    redis.Cmdable
	Namespace string
}

func NewSchemaStorage(client redis.Cmdable, namespace string) SchemaStorage {
	return SchemaStorage{
		Client:    client,
		Namespace: namespace,
	}
}

func (r *SchemaStorage) GetSchema(ctx context.Context, componentPath string) ([]byte, error) {
	schemaBytes, err := r.Client.HGet(ctx, schemaStorageKey(r.Namespace), componentPath).Bytes()
	if eris.Is(err, redis.Nil) {
		return nil, eris.Wrapf(ErrNoSchemaFound, "component %q", componentPath)
	} else if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return schemaBytes, nil
}

func (r *SchemaStorage) SetSchema(ctx context.Context, componentPath string, schemaData []byte) error {
	return eris.Wrap(r.Client.HSet(ctx, schemaStorageKey(r.Namespace), componentPath, schemaData).Err(), "")
}

// PublishSchemas stores the schema of every component in registry that has not been published yet. A path
// whose published schema differs from the registered type fails with ErrSchemaMismatch, since a path must
// keep its type once other processes depend on it.
func PublishSchemas(ctx context.Context, registry *component.Registry, storage *SchemaStorage) error {
	for _, desc := range registry.Components() {
		schema, err := desc.Schema()
		if err != nil {
			return err
		}
		published, err := storage.GetSchema(ctx, desc.Path())
		if eris.Is(err, ErrNoSchemaFound) {
			if err := storage.SetSchema(ctx, desc.Path(), schema); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}
		patch, err := jsondiff.CompareJSON(published, schema)
		if err != nil {
			return eris.Wrapf(err, "failed to compare schemas of component %q", desc.Path())
		}
		if patch.String() != "" {
			return eris.Wrapf(ErrSchemaMismatch, "component %q: %s", desc.Path(), patch.String())
		}
	}
	return nil
}
