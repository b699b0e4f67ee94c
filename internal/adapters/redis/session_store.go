package redis

// Package redis provides Redis-based adapters for the clinic portal.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/clinic-portal/internal/data/cryptoutil"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
)

const defaultSessionPrefix = "clinic:session:"

// SessionStore is a Redis-based session store for production use.
// Records expire with the session's ExpiresAt through the key TTL.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	sealer cryptoutil.Sealer
	now    func() time.Time
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, defaultSessionPrefix)
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &SessionStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithSealer encrypts records written from now on. Plaintext records written
// before sealing was enabled remain readable until they expire.
func (s *SessionStore) WithSealer(sealer cryptoutil.Sealer) *SessionStore {
	s.sealer = sealer
	return s
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	var value any = data
	if s.sealer != nil {
		sealed, sealErr := s.sealer.Seal(data)
		if sealErr != nil {
			return fmt.Errorf("seal session: %w", sealErr)
		}
		value = sealed
	}

	if err := s.client.Set(ctx, s.prefix+sess.ID, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	if data, err = s.open(data); err != nil {
		return domainauth.Session{}, err
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// Key TTL normally handles this; a record written with a skewed clock can outlive it.
	if s.now().After(sess.ExpiresAt) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return domainauth.Session{}, ErrNotFound
	}

	return sess, nil
}

func (s *SessionStore) open(data []byte) ([]byte, error) {
	if !cryptoutil.IsSealed(string(data)) {
		return data, nil
	}
	if s.sealer == nil {
		return nil, errors.New("session record is sealed but no session key is configured")
	}
	pt, err := s.sealer.Open(string(data))
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return pt, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// List returns every live session under the store's prefix, newest expiry first.
// It walks the keyspace with SCAN and is meant for administrative use.
func (s *SessionStore) List(ctx context.Context) ([]domainauth.Session, error) {
	var (
		out    []domainauth.Session
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, key := range keys {
			sess, getErr := s.Get(ctx, key[len(s.prefix):])
			if errors.Is(getErr, ErrNotFound) {
				continue
			}
			if getErr != nil {
				return nil, getErr
			}
			out = append(out, sess)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.After(out[j].ExpiresAt) })
	return out, nil
}

// ErrNotFound is returned when a session is not found.
var ErrNotFound = domainauth.ErrSessionNotFound

// ErrExpired is returned when saving a session whose ExpiresAt has passed.
var ErrExpired = errors.New("session is expired")
