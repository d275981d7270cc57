package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultFallbackPath = ".secrets.local"

// accessFunc fetches a secret version payload by fully qualified resource name.
type accessFunc func(ctx context.Context, name string) (string, error)

// Fetcher resolves secret:// references using Google Secret Manager with
// caching and a local fallback file for development environments.
type Fetcher struct {
	access accessFunc
	close  func() error

	logger    *zap.Logger
	projectID string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	access       accessFunc
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithProject configures the project ID used when references omit one.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithAccessFunc injects a custom secret accessor (primarily for tests).
func WithAccessFunc(fn func(ctx context.Context, name string) (string, error)) Option {
	return func(cfg *fetcherConfig) {
		cfg.access = fn
	}
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher builds a Fetcher backed by Secret Manager. When the client cannot
// be constructed the fetcher operates in fallback-only mode.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	f := &Fetcher{
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]cacheEntry),
		close:        func() error { return nil },
	}

	if cfg.access != nil {
		f.access = cfg.access
		return f, nil
	}

	client, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
	if err != nil {
		cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		return f, nil
	}

	f.access = func(ctx context.Context, name string) (string, error) {
		resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Payload == nil {
			return "", fmt.Errorf("secret manager returned empty payload for %s", name)
		}
		return string(resp.Payload.GetData()), nil
	}
	f.close = client.Close
	return f, nil
}

// Close releases resources held by the fetcher.
func (f *Fetcher) Close() error {
	if f == nil || f.close == nil {
		return nil
	}
	return f.close()
}

// ResolveSecret retrieves the secret value for the supplied reference,
// consulting the cache and the local fallback file as needed. It implements
// config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	if value, ok := f.lookupCache(parsed.Canonical); ok {
		return value, nil
	}

	projectID := parsed.ProjectOverride
	if projectID == "" {
		projectID = f.projectID
	}

	if f.access != nil && projectID != "" {
		name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, parsed.Secret, parsed.Version)
		value, fetchErr := f.access(ctx, name)
		if fetchErr == nil {
			f.storeCache(parsed.Canonical, value)
			return value, nil
		}
		if !isFallbackError(fetchErr) {
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.Canonical, fetchErr)
		}
		f.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.Canonical), zap.Error(fetchErr))
	}

	value, ok := f.lookupFallback(parsed.Canonical)
	if !ok {
		return "", fmt.Errorf("secrets: fallback value not found for %s", parsed.Canonical)
	}
	f.storeCache(parsed.Canonical, value)
	return value, nil
}

// Invalidate clears the cached value for the supplied reference.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, parsed.Canonical)
	f.mu.Unlock()
}

func (f *Fetcher) lookupCache(canonical string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[canonical]
	if !ok {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) storeCache(canonical, value string) {
	f.mu.Lock()
	f.cache[canonical] = cacheEntry{value: value, fetchedAt: time.Now()}
	f.mu.Unlock()
}

func (f *Fetcher) lookupFallback(canonical string) (string, bool) {
	f.loadFallback()
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback load error", zap.Error(f.fallbackErr))
		return "", false
	}
	value, ok := f.fallbackVals[canonical]
	return value, ok
}

func (f *Fetcher) loadFallback() {
	f.fallbackOnce.Do(func() {
		f.fallbackVals = map[string]string{}

		path := strings.TrimSpace(f.fallbackPath)
		if path == "" {
			return
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}

		file, err := os.Open(absPath)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			f.fallbackErr = fmt.Errorf("secrets: unable to open fallback file %s: %w", absPath, err)
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if key == "" {
				continue
			}
			if parsed, err := parseReference(normalizeKey(key)); err == nil {
				f.fallbackVals[parsed.Canonical] = value
			}
		}
		if err := scanner.Err(); err != nil {
			f.fallbackErr = fmt.Errorf("secrets: failed reading %s: %w", absPath, err)
		}
	})
}

type parsedReference struct {
	Canonical       string
	Secret          string
	Version         string
	ProjectOverride string
}

func parseReference(ref string) (parsedReference, error) {
	if strings.TrimSpace(ref) == "" {
		return parsedReference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return parsedReference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return parsedReference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	secret := strings.Trim(strings.TrimPrefix(u.Host+u.Path, "/"), "/")
	if secret == "" {
		return parsedReference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	values := u.Query()
	version := strings.TrimSpace(values.Get("version"))
	if version == "" {
		version = "latest"
	}

	return parsedReference{
		Canonical:       canonical.String(),
		Secret:          secret,
		Version:         version,
		ProjectOverride: strings.TrimSpace(values.Get("project")),
	}, nil
}

func normalizeKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func isFallbackError(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded, codes.NotFound:
		return true
	default:
		return false
	}
}
