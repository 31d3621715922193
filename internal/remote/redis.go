package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Key layout: each document lives at a string key, each collection keeps a
// set of member paths for the server-side count, and each collection has a
// pub/sub channel that fans out change notifications to subscribers.
const (
	docPrefix  = "nb:doc:"
	colPrefix  = "nb:col:"
	chanPrefix = "nb:chan:"
)

// redisClient implements Client on top of a Redis server.
type redisClient struct {
	rdb    *redis.Client
	logger *log.Logger
}

// NewRedis creates a Redis-backed Client.
//
// If logger is nil, a default logger writing to stderr is used.
func NewRedis(rdb *redis.Client, logger *log.Logger) Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &redisClient{rdb: rdb, logger: logger}
}

// WriteAtPath implements Client. The document write, the collection index
// update and the change notification go out in one pipeline.
func (c *redisClient) WriteAtPath(ctx context.Context, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document at %s: %w", path, err)
	}

	collection := collectionOf(path)
	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, docPrefix+path, data, 0)
	pipe.SAdd(ctx, colPrefix+collection, path)
	pipe.Publish(ctx, chanPrefix+collection, path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write document at %s: %w", path, err)
	}
	return nil
}

// DeleteAtPath implements Client.
func (c *redisClient) DeleteAtPath(ctx context.Context, path string) error {
	collection := collectionOf(path)
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, docPrefix+path)
	pipe.SRem(ctx, colPrefix+collection, path)
	pipe.Publish(ctx, chanPrefix+collection, path)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete document at %s: %w", path, err)
	}
	return nil
}

// Subscribe implements Client. A goroutine delivers the initial snapshot,
// then re-fetches and re-delivers the full collection after every change
// notification. Notification payloads are ignored; the snapshot is always
// read fresh, so missed or coalesced messages only delay convergence.
func (c *redisClient) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (func(), error) {
	pubsub := c.rdb.Subscribe(ctx, chanPrefix+collection)

	// Force the subscription onto the wire before the initial snapshot so
	// no change between the two is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", collection, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		if docs, err := c.fetchSnapshot(subCtx, collection); err == nil {
			fn(docs)
		} else {
			c.logger.Printf("initial snapshot of %s failed: %v", collection, err)
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				docs, err := c.fetchSnapshot(subCtx, collection)
				if err != nil {
					c.logger.Printf("snapshot of %s failed: %v", collection, err)
					continue
				}
				fn(docs)
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			<-done
		})
	}
	return unsubscribe, nil
}

func (c *redisClient) fetchSnapshot(ctx context.Context, collection string) ([]Doc, error) {
	paths, err := c.rdb.SMembers(ctx, colPrefix+collection).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = docPrefix + p
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents of %s: %w", collection, err)
	}

	var docs []Doc
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		docs = append(docs, Doc{Path: paths[i], Data: json.RawMessage(s)})
	}
	return docs, nil
}

// AtomicIncrement implements Client via INCRBY.
func (c *redisClient) AtomicIncrement(ctx context.Context, path string, delta int64) (int64, error) {
	n, err := c.rdb.IncrBy(ctx, docPrefix+path, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter at %s: %w", path, err)
	}
	return n, nil
}

// CountCollection implements Client via SCARD, a server-side aggregate.
func (c *redisClient) CountCollection(ctx context.Context, collection string) (int64, error) {
	n, err := c.rdb.SCard(ctx, colPrefix+collection).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count collection %s: %w", collection, err)
	}
	return n, nil
}

// ExistsAtPath implements Client.
func (c *redisClient) ExistsAtPath(ctx context.Context, path string) (bool, error) {
	n, err := c.rdb.Exists(ctx, docPrefix+path).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check document at %s: %w", path, err)
	}
	return n > 0, nil
}
