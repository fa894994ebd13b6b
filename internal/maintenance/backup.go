package maintenance

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

// BackupUploader ships gzipped JSONL snapshots to S3-compatible storage.
type BackupUploader struct {
	client *minio.Client
	bucket string
}

func NewBackupUploader(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*BackupUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("backup client: %w", err)
	}
	return &BackupUploader{client: client, bucket: bucket}, nil
}

func (u *BackupUploader) ensureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{})
}

type backupRecord struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Category    string   `json:"category"`
	SubjectName string   `json:"subject_name"`
	Content     string   `json:"content"`
	Predicate   string   `json:"predicate,omitempty"`
	Object      string   `json:"object,omitempty"`
	Importance  float64  `json:"importance"`
	Pinned      bool     `json:"pinned,omitempty"`
	Version     int      `json:"version"`
	Sensitivity string   `json:"sensitivity"`
	CreatedAt   string   `json:"created_at"`
	ExpiresAt   *string  `json:"expires_at,omitempty"`
}

// Backup snapshots every owner's active records to object storage, one
// gzipped JSONL object per owner per day. Private records never leave the
// local store. Object names are date-keyed, so rerunning the job on the
// same day overwrites the same snapshot instead of accumulating copies.
func (r *Runner) Backup(ctx context.Context, job *Job) error {
	if r.backup == nil {
		logger.Debug("backup skipped: no uploader configured")
		return nil
	}
	if err := r.backup.ensureBucket(ctx); err != nil {
		return err
	}

	owners, err := r.store.Owners()
	if err != nil {
		return err
	}

	day := time.Now().UTC().Format("2006-01-02")
	for _, owner := range owners {
		records, err := r.store.ListActiveByOwner(owner)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		enc := json.NewEncoder(gz)
		n := 0
		for _, rec := range records {
			if rec.Sensitivity == memory.SensitivityPrivate {
				continue
			}
			if err := enc.Encode(snapshotOf(rec)); err != nil {
				gz.Close()
				return err
			}
			n++
		}
		if err := gz.Close(); err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		name := fmt.Sprintf("snapshots/%s/%s.jsonl.gz", owner, day)
		_, err = r.backup.client.PutObject(ctx, r.backup.bucket, name,
			bytes.NewReader(buf.Bytes()), int64(buf.Len()),
			minio.PutObjectOptions{ContentType: "application/gzip"})
		if err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		logger.Info("backup uploaded", "owner", owner, "object", name, "records", n)
	}
	return nil
}

func snapshotOf(rec *memory.Record) backupRecord {
	b := backupRecord{
		ID:          rec.ID,
		Kind:        string(rec.Kind),
		Category:    rec.Category,
		SubjectName: rec.SubjectName,
		Content:     rec.Content,
		Predicate:   rec.Predicate,
		Object:      rec.Object,
		Importance:  rec.Importance,
		Pinned:      rec.Pinned,
		Version:     rec.Version,
		Sensitivity: string(rec.Sensitivity),
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.ExpiresAt != nil {
		s := rec.ExpiresAt.UTC().Format(time.RFC3339)
		b.ExpiresAt = &s
	}
	return b
}
