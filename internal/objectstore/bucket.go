// Package objectstore provides a NATS JetStream implementation of the
// ObjectStore interface, used for voice inventories and selection results.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Bucket implements core.ObjectStore on one JetStream object store bucket.
// Every call carries the caller's context so a job timeout also bounds its I/O.
type Bucket struct {
	name  string
	store nats.ObjectStore
}

// Open creates the bucket, or binds to it when a bucket of that name exists.
func Open(jetstreamContext nats.JetStreamContext, name string) (*Bucket, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Unit selection storage for the %s bucket.", name),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !bucketExists(err) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", name, err)
		}

		store, err = jetstreamContext.ObjectStore(name)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", name, err)
		}
	}

	return &Bucket{name: name, store: store}, nil
}

func bucketExists(err error) bool {
	return errors.Is(err, nats.ErrStreamNameAlreadyInUse) || errors.Is(err, jetstream.ErrBucketExists)
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Download retrieves an object from the bucket.
func (b *Bucket) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := b.store.GetBytes(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, b.name, err)
	}

	return data, nil
}

// Upload stores data under key, replacing any previous object.
func (b *Bucket) Upload(ctx context.Context, key string, data []byte) error {
	_, err := b.store.PutBytes(key, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, b.name, err)
	}

	return nil
}

// Keys lists the object names in the bucket in lexical order. An empty bucket
// yields an empty list.
func (b *Bucket) Keys(ctx context.Context) ([]string, error) {
	infos, err := b.store.List(nats.Context(ctx))
	if errors.Is(err, nats.ErrNoObjectsFound) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list objects in bucket '%s': %w", b.name, err)
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Name)
	}

	slices.Sort(keys)

	return keys, nil
}
