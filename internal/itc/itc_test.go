package itc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func sampleResult(id string) Result {
	return Result{
		ObservationID: id,
		ExposureTime:  120 * time.Second,
		ExposureCount: 12,
		SignalToNoise: 85.5,
		ComputedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func cacheContract(t *testing.T, cache Cache) {
	t.Helper()
	ctx := context.Background()

	ok, err := cache.Has(ctx, "o-1")
	if err != nil || ok {
		t.Fatalf("Has before put: ok=%v err=%v", ok, err)
	}
	if _, err := cache.Get(ctx, "o-1"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("Get before put: %v", err)
	}

	if err := cache.Put(ctx, sampleResult("o-1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err = cache.Has(ctx, "o-1")
	if err != nil || !ok {
		t.Fatalf("Has after put: ok=%v err=%v", ok, err)
	}
	got, err := cache.Get(ctx, "o-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ExposureCount != 12 || got.SignalToNoise != 85.5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Put overwrites.
	updated := sampleResult("o-1")
	updated.ExposureCount = 20
	if err := cache.Put(ctx, updated); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = cache.Get(ctx, "o-1")
	if err != nil || got.ExposureCount != 20 {
		t.Fatalf("overwrite not visible: %+v err=%v", got, err)
	}

	if err := cache.Put(ctx, sampleResult("o-2")); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := cache.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ObservationID != "o-1" || list[1].ObservationID != "o-2" {
		t.Fatalf("list = %+v", list)
	}

	deleted, err := cache.Delete(ctx, "o-1")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = cache.Delete(ctx, "o-1")
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	if ok, _ := cache.Has(ctx, "o-1"); ok {
		t.Fatalf("deleted result still present")
	}
}

func TestMemoryCache(t *testing.T) {
	cacheContract(t, NewMemoryCache())
}

func TestFileCache(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("new file cache: %v", err)
	}
	cacheContract(t, cache)
}

func TestFileCacheRejectsPathTraversal(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("new file cache: %v", err)
	}
	ctx := context.Background()
	if err := cache.Put(ctx, sampleResult("../escape")); err == nil {
		t.Fatalf("expected traversal id to be rejected")
	}
	if _, err := cache.Get(ctx, "a/b"); err == nil {
		t.Fatalf("expected separator id to be rejected")
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	cache, err := Open(ctx, Options{})
	if err != nil || cache.Driver() != DriverMemory {
		t.Fatalf("default driver: %v %v", cache, err)
	}

	cache, err = Open(ctx, Options{Driver: DriverFilesystem, Root: t.TempDir()})
	if err != nil || cache.Driver() != DriverFilesystem {
		t.Fatalf("fs driver: %v %v", cache, err)
	}

	if _, err := Open(ctx, Options{Driver: Driver("bogus")}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestS3NotFoundMatching(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"head not found", &types.NotFound{}, true},
		{"wrapped", fmt.Errorf("get object: %w", &types.NoSuchKey{}), true},
		{"unrelated", errors.New("operation error S3: GetObject, access denied"), false},
	}
	for _, tc := range cases {
		if got := isNotFound(tc.err); got != tc.want {
			t.Fatalf("%s: isNotFound = %v, want %v", tc.name, got, tc.want)
		}
	}
}
