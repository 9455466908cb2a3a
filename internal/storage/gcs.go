// Package storage publishes pipeline artifacts to Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
)

// ObjectInfo describes one object in the bucket.
type ObjectInfo struct {
	Name           string    `json:"name"`
	Size           int64     `json:"size"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
	Generation     int64     `json:"generation"`
	Metageneration int64     `json:"metageneration"`
	ContentType    string    `json:"content_type"`
}

// Manager wraps a GCS client scoped to one bucket.
type Manager struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewManager connects to GCS and verifies the bucket is reachable.
// Credentials come from the ambient environment (GOOGLE_APPLICATION_CREDENTIALS
// or metadata server).
func NewManager(ctx context.Context, bucket string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gcs client: %w", err)
	}

	m := &Manager{client: client, bucket: bucket, logger: logger}
	if err := m.verifyBucket(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) verifyBucket(ctx context.Context) error {
	_, err := m.client.Bucket(m.bucket).Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("gcs bucket not found: %s", m.bucket)
	}
	if err != nil {
		return fmt.Errorf("cannot access gcs bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("connected to gcs bucket", "bucket", m.bucket)
	return nil
}

// Close releases the underlying client.
func (m *Manager) Close() error {
	return m.client.Close()
}

// URL returns the gs:// URL for an object path.
func (m *Manager) URL(objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", m.bucket, objectPath)
}

// Upload copies a local file to the bucket. Content type follows the file
// extension and the object records when and from where it was uploaded, plus
// any extra metadata given.
func (m *Manager) Upload(ctx context.Context, localPath, objectPath string, metadata map[string]string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("local file not found: %s: %w", localPath, err)
	}
	defer src.Close()

	m.logger.Info("uploading file", "path", localPath, "object", m.URL(objectPath))

	objectMeta := map[string]string{
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
		"source_path": localPath,
	}
	for k, v := range metadata {
		objectMeta[k] = v
	}

	w := m.client.Bucket(m.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = ContentTypeFor(filepath.Ext(localPath))
	w.Metadata = objectMeta

	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close gcs writer: %w", err)
	}

	url := m.URL(objectPath)
	m.logger.Info("uploaded file", "object", url)
	return url, nil
}

// Download copies an object to a local path, creating parent directories.
func (m *Manager) Download(ctx context.Context, objectPath, localPath string) error {
	m.logger.Info("downloading file", "object", m.URL(objectPath), "path", localPath)

	rc, err := m.client.Bucket(m.bucket).Object(objectPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("file not found in gcs: %s", objectPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read from gcs: %w", err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, rc); err != nil {
		return fmt.Errorf("failed to download from gcs: %w", err)
	}
	return dst.Close()
}

// List returns the names of the objects under a prefix.
func (m *Manager) List(ctx context.Context, prefix string) ([]string, error) {
	it := m.client.Bucket(m.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gcs objects: %w", err)
		}
		names = append(names, attrs.Name)
	}
	m.logger.Debug("listed gcs objects", "prefix", prefix, "count", len(names))
	return names, nil
}

// Delete removes an object. A missing object is logged and ignored.
func (m *Manager) Delete(ctx context.Context, objectPath string) error {
	err := m.client.Bucket(m.bucket).Object(objectPath).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		m.logger.Warn("file not found, cannot delete", "object", objectPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete gcs object: %w", err)
	}
	m.logger.Info("deleted gcs object", "object", m.URL(objectPath))
	return nil
}

// Copy duplicates an object within the bucket.
func (m *Manager) Copy(ctx context.Context, srcPath, dstPath string) error {
	bucket := m.client.Bucket(m.bucket)
	_, err := bucket.Object(dstPath).CopierFrom(bucket.Object(srcPath)).Run(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("source file not found: %s", srcPath)
	}
	if err != nil {
		return fmt.Errorf("failed to copy gcs object: %w", err)
	}
	m.logger.Info("copied gcs object", "from", srcPath, "to", dstPath)
	return nil
}

// Info fetches an object's attributes, or nil when the object does not exist.
func (m *Manager) Info(ctx context.Context, objectPath string) (*ObjectInfo, error) {
	attrs, err := m.client.Bucket(m.bucket).Object(objectPath).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gcs object attrs: %w", err)
	}

	contentType := attrs.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &ObjectInfo{
		Name:           attrs.Name,
		Size:           attrs.Size,
		Created:        attrs.Created,
		Updated:        attrs.Updated,
		Generation:     attrs.Generation,
		Metageneration: attrs.Metageneration,
		ContentType:    contentType,
	}, nil
}

// SignedURL returns a temporary GET URL for an object.
func (m *Manager) SignedURL(objectPath string, ttl time.Duration) (string, error) {
	url, err := m.client.Bucket(m.bucket).SignedURL(objectPath, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", objectPath, err)
	}
	m.logger.Info("generated signed url", "object", objectPath, "ttl", ttl)
	return url, nil
}

// UploadDataset publishes a dataset file and its metadata sidecar under the
// versioned layout datasets/{name}/{version}/. The two files upload
// concurrently; an empty sidecarPath uploads the dataset alone. It returns
// the version prefix URL.
func (m *Manager) UploadDataset(ctx context.Context, name, version, dataPath, sidecarPath string) (string, error) {
	metadata := map[string]string{
		"dataset_name": name,
		"version":      version,
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		_, err := m.Upload(egctx, dataPath, DatasetObjectPath(name, version, dataPath), metadata)
		return err
	})
	if sidecarPath != "" {
		eg.Go(func() error {
			_, err := m.Upload(egctx, sidecarPath, DatasetObjectPath(name, version, sidecarPath), metadata)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	prefix := m.URL(path.Join("datasets", name, version))
	m.logger.Info("published dataset", "dataset", name, "version", version, "prefix", prefix)
	return prefix, nil
}

// DatasetObjectPath returns the versioned object path for a local file.
func DatasetObjectPath(name, version, localPath string) string {
	return path.Join("datasets", name, version, filepath.Base(localPath))
}

// ListVersions returns a dataset's published versions, newest first.
func (m *Manager) ListVersions(ctx context.Context, name string) ([]string, error) {
	prefix := fmt.Sprintf("datasets/%s/", name)
	it := m.client.Bucket(m.bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var versions []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list dataset versions: %w", err)
		}
		if attrs.Prefix == "" {
			continue
		}
		versions = append(versions, path.Base(strings.TrimSuffix(attrs.Prefix, "/")))
	}

	sort.Sort(sort.Reverse(sort.StringSlice(versions)))
	m.logger.Debug("listed dataset versions", "dataset", name, "count", len(versions))
	return versions, nil
}

// LatestVersion returns the newest published version, or "" when the dataset
// has none.
func (m *Manager) LatestVersion(ctx context.Context, name string) (string, error) {
	versions, err := m.ListVersions(ctx, name)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[0], nil
}

// ContentTypeFor maps a file extension to the content type uploads carry.
func ContentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/octet-stream"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
