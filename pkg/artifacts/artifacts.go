// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifacts stores the files produced by benchmark runs.
//
// Each run of a model produces a handful of assets (build log, run log,
// performance records, raw results) that are kept for inspection after the
// containers are gone. Stores are addressed by URL: file:// paths and bare
// paths write to the local filesystem, gs:// paths write to a GCS bucket.
package artifacts

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// AssetType is the type of a file kept from a benchmark run.
type AssetType string

func (a AssetType) For(model string) Asset {
	return Asset{Type: a, Model: model}
}

const (
	// BuildLogAsset is the combined output of the image build.
	BuildLogAsset AssetType = "build.log"
	// RunLogAsset is the combined output of the benchmark container.
	RunLogAsset AssetType = "run.log"
	// PerfAsset is the cumulative performance CSV across runs.
	PerfAsset AssetType = "perf.csv"
	// PerfEntryAsset is the performance CSV holding only the latest run.
	PerfEntryAsset AssetType = "perf_entry.csv"
	// ResultAsset is the raw result file a benchmark script wrote, if any.
	ResultAsset AssetType = "result.json"
	// DockerfileAsset is the Dockerfile the image was built from.
	DockerfileAsset AssetType = "Dockerfile"
)

var (
	// ErrNoStorePath indicates that no artifact path was provided and a Store couldn't be constructed.
	ErrNoStorePath = errors.New("no artifact path provided")
	// ErrAssetNotFound indicates the asset requested to be read could not be found.
	ErrAssetNotFound = errors.New("asset not found")
)

// Asset identifies one stored file from one model's run.
type Asset struct {
	Type  AssetType
	Model string
}

// assetPath describes the layout shared by the hierarchy-based Store types.
func assetPath(a Asset, runID string) []string {
	return []string{a.Model, runID, string(a.Type)}
}

// ReadOnlyStore is a read-side storage mechanism for run assets.
type ReadOnlyStore interface {
	Reader(ctx context.Context, a Asset) (io.ReadCloser, error)
}

// Store is a storage mechanism for run assets.
type Store interface {
	ReadOnlyStore
	Writer(ctx context.Context, a Asset) (io.WriteCloser, error)
}

// LocatableStore is a store whose assets can be identified with a URL.
type LocatableStore interface {
	Store
	URL(a Asset) *url.URL
}

// Copy copies an asset from one store to another.
func Copy(ctx context.Context, to Store, from ReadOnlyStore, a Asset) error {
	r, err := from.Reader(ctx, a)
	if err != nil {
		return errors.Wrap(err, "from.Reader failed")
	}
	defer r.Close()
	w, err := to.Writer(ctx, a)
	if err != nil {
		return errors.Wrap(err, "to.Writer failed")
	}
	defer w.Close()
	if _, err := io.Copy(w, r); err != nil {
		return errors.Wrap(err, "copy failed")
	}
	return w.Close()
}

// NewStore constructs a store for the given location URL.
//
// gs://bucket/prefix selects GCS. file:///dir and bare paths select the
// local filesystem, creating the directory if needed. The runID becomes
// part of every asset's path.
func NewStore(ctx context.Context, location, runID string) (LocatableStore, error) {
	if location == "" {
		return nil, ErrNoStorePath
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrap(err, "parsing as url")
	}
	switch u.Scheme {
	case "gs":
		store, err := NewGCSStore(ctx, location, runID)
		return store, errors.Wrap(err, "creating GCS store")
	case "file", "":
		dir := u.Path
		if u.Scheme == "" {
			dir = location
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "creating artifact dir")
		}
		return NewFilesystemStoreWithRunID(osfs.New(dir), runID), nil
	default:
		return nil, errors.Errorf("unsupported scheme: '%s'", u.Scheme)
	}
}

// GCSStore is an asset store backed by GCS.
type GCSStore struct {
	gcsClient *gcs.Client
	bucket    string
	prefix    string
	runID     string
}

// GCSClientOptions carries dial options for the GCS client, for tests.
type gcsOptionsKey struct{}

// ContextWithGCSOptions returns a context carrying GCS client options.
func ContextWithGCSOptions(ctx context.Context, opts ...option.ClientOption) context.Context {
	return context.WithValue(ctx, gcsOptionsKey{}, opts)
}

// NewGCSStore creates a new GCSStore.
func NewGCSStore(ctx context.Context, location, runID string) (*GCSStore, error) {
	s := &GCSStore{runID: runID}
	{
		var err error
		var gcsOpts []option.ClientOption
		if opts, ok := ctx.Value(gcsOptionsKey{}).([]option.ClientOption); ok {
			gcsOpts = append(gcsOpts, opts...)
		}
		s.gcsClient, err = gcs.NewClient(ctx, gcsOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "creating GCS client")
		}
	}
	s.bucket, s.prefix, _ = strings.Cut(strings.TrimPrefix(location, "gs://"), "/")
	if s.bucket == "" {
		return nil, errors.New("no bucket in GCS path")
	}
	return s, nil
}

func (s *GCSStore) URL(a Asset) *url.URL {
	return &url.URL{Scheme: "gs", Path: path.Join(s.bucket, s.resourcePath(a))}
}

func (s *GCSStore) resourcePath(a Asset) string {
	return path.Join(append([]string{s.prefix}, assetPath(a, s.runID)...)...)
}

// Reader returns a reader for the given asset.
func (s *GCSStore) Reader(ctx context.Context, a Asset) (io.ReadCloser, error) {
	path := s.resourcePath(a)
	obj := s.gcsClient.Bucket(s.bucket).Object(path)
	r, err := obj.NewReader(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			err = stderrors.Join(err, ErrAssetNotFound)
		}
		return nil, errors.Wrapf(err, "creating GCS reader for %s", path)
	}
	return r, nil
}

// Writer returns a writer for the given asset.
func (s *GCSStore) Writer(ctx context.Context, a Asset) (io.WriteCloser, error) {
	obj := s.gcsClient.Bucket(s.bucket).Object(s.resourcePath(a))
	return obj.NewWriter(ctx), nil
}

var _ LocatableStore = &GCSStore{}

// FilesystemStore stores assets in a billy.Filesystem.
type FilesystemStore struct {
	fs    billy.Filesystem
	runID string
}

func (s *FilesystemStore) resourcePath(a Asset) string {
	return filepath.Join(assetPath(a, s.runID)...)
}

func (s *FilesystemStore) URL(a Asset) *url.URL {
	return &url.URL{Scheme: "file", Path: filepath.Join(s.fs.Root(), s.resourcePath(a))}
}

// Reader returns a reader for the given asset.
func (s *FilesystemStore) Reader(ctx context.Context, a Asset) (io.ReadCloser, error) {
	path := s.resourcePath(a)
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = stderrors.Join(err, ErrAssetNotFound)
		}
		return nil, errors.Wrapf(err, "creating reader for %v", a)
	}
	return f, nil
}

// Writer returns a writer for the given asset.
func (s *FilesystemStore) Writer(ctx context.Context, a Asset) (io.WriteCloser, error) {
	path := s.resourcePath(a)
	f, err := s.fs.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating writer for %v", a)
	}
	return f, nil
}

var _ LocatableStore = &FilesystemStore{}

// NewFilesystemStoreWithRunID creates a new FilesystemStore scoped to a run.
func NewFilesystemStoreWithRunID(fs billy.Filesystem, runID string) *FilesystemStore {
	return &FilesystemStore{fs: fs, runID: runID}
}

// NewFilesystemStore creates a new FilesystemStore with no run scoping.
func NewFilesystemStore(fs billy.Filesystem) *FilesystemStore {
	return NewFilesystemStoreWithRunID(fs, "")
}

// LatestRunStore reads each model's assets from its most recent run. Run IDs
// sort chronologically, so the lexically greatest directory name wins.
type LatestRunStore struct {
	fs billy.Filesystem
}

// NewLatestRunStore creates a read-only store over an artifact directory that
// is not scoped to a single run.
func NewLatestRunStore(fs billy.Filesystem) *LatestRunStore {
	return &LatestRunStore{fs: fs}
}

// Reader returns a reader for the asset from the model's latest run.
func (s *LatestRunStore) Reader(ctx context.Context, a Asset) (io.ReadCloser, error) {
	infos, err := s.fs.ReadDir(a.Model)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = stderrors.Join(err, ErrAssetNotFound)
		}
		return nil, errors.Wrapf(err, "listing runs for %s", a.Model)
	}
	var latest string
	for _, info := range infos {
		if info.IsDir() && info.Name() > latest {
			latest = info.Name()
		}
	}
	if latest == "" {
		return nil, errors.Wrapf(ErrAssetNotFound, "no runs stored for %s", a.Model)
	}
	f, err := s.fs.Open(filepath.Join(a.Model, latest, string(a.Type)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = stderrors.Join(err, ErrAssetNotFound)
		}
		return nil, errors.Wrapf(err, "creating reader for %v", a)
	}
	return f, nil
}

var _ ReadOnlyStore = &LatestRunStore{}

// GCSLatestRunStore reads each model's assets from its most recent run in a
// GCS bucket. Like LatestRunStore, the lexically greatest run segment wins.
type GCSLatestRunStore struct {
	gcsClient *gcs.Client
	bucket    string
	prefix    string
}

// NewGCSLatestRunStore creates a read-only store over a gs://bucket/prefix
// location that is not scoped to a single run.
func NewGCSLatestRunStore(ctx context.Context, location string) (*GCSLatestRunStore, error) {
	s := &GCSLatestRunStore{}
	{
		var err error
		var gcsOpts []option.ClientOption
		if opts, ok := ctx.Value(gcsOptionsKey{}).([]option.ClientOption); ok {
			gcsOpts = append(gcsOpts, opts...)
		}
		s.gcsClient, err = gcs.NewClient(ctx, gcsOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "creating GCS client")
		}
	}
	s.bucket, s.prefix, _ = strings.Cut(strings.TrimPrefix(location, "gs://"), "/")
	if s.bucket == "" {
		return nil, errors.New("no bucket in GCS path")
	}
	return s, nil
}

// latestRun lists the objects under the model's prefix and returns the
// greatest run segment found.
func (s *GCSLatestRunStore) latestRun(ctx context.Context, model string) (string, error) {
	dir := path.Join(s.prefix, model) + "/"
	it := s.gcsClient.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: dir})
	var latest string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "iterating over objects")
		}
		run, _, found := strings.Cut(strings.TrimPrefix(attrs.Name, dir), "/")
		if !found {
			continue
		}
		if run > latest {
			latest = run
		}
	}
	if latest == "" {
		return "", errors.Wrapf(ErrAssetNotFound, "no runs stored for %s", model)
	}
	return latest, nil
}

// Reader returns a reader for the asset from the model's latest run.
func (s *GCSLatestRunStore) Reader(ctx context.Context, a Asset) (io.ReadCloser, error) {
	latest, err := s.latestRun(ctx, a.Model)
	if err != nil {
		return nil, err
	}
	name := path.Join(append([]string{s.prefix}, assetPath(a, latest)...)...)
	r, err := s.gcsClient.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			err = stderrors.Join(err, ErrAssetNotFound)
		}
		return nil, errors.Wrapf(err, "creating GCS reader for %s", name)
	}
	return r, nil
}

var _ ReadOnlyStore = &GCSLatestRunStore{}

// NewLatestRunReader constructs a read-only store over the given location
// that serves each model's most recent run. It accepts the same locations as
// NewStore.
func NewLatestRunReader(ctx context.Context, location string) (ReadOnlyStore, error) {
	if location == "" {
		return nil, ErrNoStorePath
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrap(err, "parsing as url")
	}
	switch u.Scheme {
	case "gs":
		store, err := NewGCSLatestRunStore(ctx, location)
		return store, errors.Wrap(err, "creating GCS store")
	case "file", "":
		dir := u.Path
		if u.Scheme == "" {
			dir = location
		}
		return NewLatestRunStore(osfs.New(dir)), nil
	default:
		return nil, errors.Errorf("unsupported scheme: '%s'", u.Scheme)
	}
}
