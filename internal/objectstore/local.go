package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps objects under a directory and hands out file:// URLs.
// Use Transport to let an http.Client resolve them.
type LocalStore struct {
	root   string
	logger *slog.Logger
}

func NewLocalStore(root string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

// Root returns the absolute directory objects are stored under.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	k := path.Clean("/" + key)
	if k == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(k)), nil
}

// RetrievalURL ignores ttl; local objects do not expire.
func (s *LocalStore) RetrievalURL(_ context.Context, bucket, key string, _ time.Duration, _ string) (string, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}
	u := url.URL{Scheme: "file", Path: "/" + bucket + path.Clean("/"+key)}
	return u.String(), nil
}

func (s *LocalStore) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		s.logger.Error("objectstore.put_failed", "bucket", bucket, "key", key, "error", err)
		return fmt.Errorf("write %s/%s: %w", bucket, key, err)
	}
	s.logger.Info("objectstore.put_ok", "bucket", bucket, "key", key, "bytes", len(data))
	return nil
}

func (s *LocalStore) Ping(_ context.Context, bucket string) error {
	st, err := os.Stat(filepath.Join(s.root, bucket))
	if err != nil || !st.IsDir() {
		return fmt.Errorf("%s: %w", bucket, ErrNotFound)
	}
	return nil
}

// Transport returns an HTTP transport that also serves file:// URLs issued
// by this store.
func (s *LocalStore) Transport() http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir(s.root)))
	return t
}
