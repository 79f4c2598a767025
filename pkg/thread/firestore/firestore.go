// Package firestore provides a Google Cloud Firestore backend for the
// thread state store, for deployments that want managed persistence
// without running Redis.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/agentserve-dev/agentserve/pkg/thread"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCollection = "agentserve-threads"

// Config holds Firestore connection settings.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Collection      string
}

// Option configures the store.
type Option func(*Config)

// WithProjectID sets the GCP project ID (required).
func WithProjectID(id string) Option {
	return func(c *Config) { c.ProjectID = id }
}

// WithCredentialsFile uses service account credentials instead of
// Application Default Credentials.
func WithCredentialsFile(path string) Option {
	return func(c *Config) { c.CredentialsFile = path }
}

// WithCollection overrides the collection name (default "agentserve-threads").
func WithCollection(name string) Option {
	return func(c *Config) { c.Collection = name }
}

// Store implements thread.Store on Firestore, one document per thread.
// Document writes are atomic, so concurrent saves for the same thread
// resolve last-write-wins without torn state.
type Store struct {
	client     *firestore.Client
	collection string
	mu         sync.RWMutex
	closed     bool
}

// checkpointDoc is the stored document shape. The checkpoint is kept as
// one serialized payload so the graph-private state round-trips
// byte-for-byte instead of being re-encoded through Firestore value types.
type checkpointDoc struct {
	AgentID   string    `firestore:"agentId"`
	UpdatedAt time.Time `firestore:"updatedAt"`
	Payload   []byte    `firestore:"payload"`
}

// New creates a Firestore-backed thread store.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}

	if config.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}
	if config.Collection == "" {
		config.Collection = defaultCollection
	}

	var clientOpts []option.ClientOption
	if config.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, config.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	return &Store{
		client:     client,
		collection: config.Collection,
	}, nil
}

// Load retrieves a thread's checkpoint.
func (s *Store) Load(ctx context.Context, threadID string) (*thread.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, thread.ErrStoreClosed
	}

	snap, err := s.client.Collection(s.collection).Doc(threadID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, thread.ErrThreadNotFound
		}
		return nil, fmt.Errorf("firestore get: %w", err)
	}

	var doc checkpointDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	var cp thread.Checkpoint
	if err := json.Unmarshal(doc.Payload, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Save writes a thread's checkpoint.
func (s *Store) Save(ctx context.Context, cp *thread.Checkpoint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return thread.ErrStoreClosed
	}

	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	doc := checkpointDoc{
		AgentID:   cp.AgentID,
		UpdatedAt: cp.UpdatedAt,
		Payload:   payload,
	}

	if _, err := s.client.Collection(s.collection).Doc(cp.ThreadID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore set: %w", err)
	}
	return nil
}

// Close releases the Firestore client.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
