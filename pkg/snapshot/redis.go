package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/newtrace/pkg/registry"
	"github.com/newtron-network/newtrace/pkg/util"
)

// DefaultKey is the Redis hash used when none is configured.
const DefaultKey = "NEWTRACE_SNAPSHOT"

const (
	metaField    = "_meta"
	devicePrefix = "DEVICE|"
)

// meta is the hash field holding everything except the device tables.
type meta struct {
	Version  int                `json:"version"`
	BuiltAt  time.Time          `json:"built_at"`
	Order    []string           `json:"order"`
	Failures []registry.Failure `json:"failures,omitempty"`
}

// RedisStore keeps one document in a Redis hash: a "_meta" field plus one
// "DEVICE|<id>" field per device holding that device's JSON.
//
//	HGET NEWTRACE_SNAPSHOT DEVICE|R1
type RedisStore struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration // zero keeps the hash until replaced
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Key:    key,
	}
}

// Ping tests the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// Close closes the connection.
func (s *RedisStore) Close() error {
	return s.Client.Close()
}

// Save replaces the hash in one MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, doc *Document) error {
	m := meta{Version: doc.Version, BuiltAt: doc.BuiltAt, Failures: doc.Failures}
	fields := make([]interface{}, 0, 2*len(doc.Devices)+2)
	for _, d := range doc.Devices {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encoding device %s: %w", d.ID, err)
		}
		m.Order = append(m.Order, d.ID)
		fields = append(fields, devicePrefix+d.ID, data)
	}
	metaData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding snapshot metadata: %w", err)
	}
	fields = append(fields, metaField, metaData)

	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.Key)
		pipe.HSet(ctx, s.Key, fields...)
		if s.TTL > 0 {
			pipe.Expire(ctx, s.Key, s.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving snapshot to %s: %w", s.Key, err)
	}
	util.WithField("key", s.Key).Debugf("Saved snapshot with %d devices", len(doc.Devices))
	return nil
}

// Load reads the hash. A missing key is util.ErrNotFound.
func (s *RedisStore) Load(ctx context.Context) (*Document, error) {
	vals, err := s.Client.HGetAll(ctx, s.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", s.Key, err)
	}
	raw, ok := vals[metaField]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", s.Key, util.ErrNotFound)
	}

	var m meta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decoding snapshot metadata: %w", err)
	}
	doc := &Document{Version: m.Version, BuiltAt: m.BuiltAt, Failures: m.Failures}

	listed := make(map[string]bool, len(m.Order))
	for _, id := range m.Order {
		listed[devicePrefix+id] = true
		data, ok := vals[devicePrefix+id]
		if !ok {
			return nil, fmt.Errorf("snapshot %s: device %s listed but missing", s.Key, id)
		}
		var d Device
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("decoding device %s: %w", id, err)
		}
		doc.Devices = append(doc.Devices, d)
	}

	for field := range vals {
		if strings.HasPrefix(field, devicePrefix) && !listed[field] {
			util.WithField("key", s.Key).Warnf("Ignoring unlisted field %s", field)
		}
	}
	return doc, nil
}
