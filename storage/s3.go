package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mrik-soulpage/pharmacovigilance/config"
)

// ArchiveStore legt erzeugte Tracker und DB-Dumps revisionssicher in einem
// S3-Bucket ab. Der Endpoint ist konfigurierbar, damit auch S3-kompatible
// Anbieter (Strato HiDrive, MinIO) funktionieren.
type ArchiveStore struct {
	Client *s3.Client
	Bucket string
	url    string
}

// Object beschreibt einen archivierten Eintrag.
type Object struct {
	Key          string
	LastModified time.Time
}

// NewArchiveStore erstellt den S3-Client aus der Archiv-Konfiguration.
func NewArchiveStore(cfg *config.Config) (*ArchiveStore, error) {
	if !cfg.ArchiveEnabled() {
		return nil, fmt.Errorf("s3-archiv nicht konfiguriert")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.ArchiveS3URL,
				SigningRegion:     cfg.ArchiveS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return &ArchiveStore{
		Client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.ArchiveS3Bucket,
		url:    cfg.ArchiveS3URL,
	}, nil
}

// UploadFile lädt eine Datei ins Archiv hoch und gibt den Link zurück.
func (s *ArchiveStore) UploadFile(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", s.url, s.Bucket, key), nil
}

// ListObjects liefert Schlüssel und Änderungszeitpunkt aller Objekte unter
// einem Präfix; sortiert übernimmt der Aufrufer.
func (s *ArchiveStore) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	output, err := s.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(output.Contents))
	for _, obj := range output.Contents {
		objects = append(objects, Object{
			Key:          aws.ToString(obj.Key),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	return objects, nil
}

// Delete entfernt ein Objekt aus dem Archiv.
func (s *ArchiveStore) Delete(ctx context.Context, key string) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	return err
}
