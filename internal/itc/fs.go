package itc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileCache implements Cache using the local filesystem. Each result lives in
// one JSON file named after its observation id. Intentionally simple; not
// safe for concurrent writers across processes.
type FileCache struct {
	root string
}

// NewFileCache returns a filesystem-backed cache rooted at path, creating it
// if needed.
func NewFileCache(root string) (*FileCache, error) {
	if root == "" {
		root = "./itccache"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{root: root}, nil
}

// Driver returns the cache driver identifier.
func (c *FileCache) Driver() Driver { return DriverFilesystem }

// sanitizeID rejects ids that would escape the cache root.
func sanitizeID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("empty observation id")
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid observation id %q", id)
	}
	return id, nil
}

func (c *FileCache) pathFor(observationID string) (string, error) {
	id, err := sanitizeID(observationID)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.root, id+".json"), nil
}

// Put stores or replaces the result for its observation.
func (c *FileCache) Put(_ context.Context, result Result) error {
	path, err := c.pathFor(result.ObservationID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode itc result: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Get returns the cached result for the observation.
func (c *FileCache) Get(_ context.Context, observationID string) (Result, error) {
	path, err := c.pathFor(observationID)
	if err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, ErrNotCached
	}
	if err != nil {
		return Result{}, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("decode itc result: %w", err)
	}
	return result, nil
}

// Has reports whether a result is cached for the observation.
func (c *FileCache) Has(_ context.Context, observationID string) (bool, error) {
	path, err := c.pathFor(observationID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the result, returning true if it existed.
func (c *FileCache) Delete(_ context.Context, observationID string) (bool, error) {
	path, err := c.pathFor(observationID)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all cached results ordered by observation id.
func (c *FileCache) List(ctx context.Context) ([]Result, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		result, err := c.Get(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservationID < out[j].ObservationID })
	return out, nil
}
