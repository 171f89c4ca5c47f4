package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// RecordingArchive keeps a copy of downloaded voicemail audio in object
// storage so recordings survive the vendor's retention window.
type RecordingArchive struct {
	client *minio.Client
	bucket string
}

func NewRecordingArchive(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*RecordingArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &RecordingArchive{client: client, bucket: bucket}, nil
}

func (a *RecordingArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
}

// Store writes the audio under a deterministic key derived from the
// vendor recording SID and returns the object name.
func (a *RecordingArchive) Store(ctx context.Context, recordingSID string, audio []byte) (string, error) {
	object := fmt.Sprintf("voicemail/%s.mp3", recordingSID)
	_, err := a.client.PutObject(ctx, a.bucket, object, bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{
		ContentType: "audio/mpeg",
	})
	if err != nil {
		return "", err
	}
	return object, nil
}
