package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// getGoogleClient prefers GCS_CREDENTIALS_JSON and falls back to ADC.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ContentTypeFor guesses the upload content type from the object name.
func ContentTypeFor(objectName string) string {
	switch strings.ToLower(path.Ext(objectName)) {
	case ".json":
		return ContentTypeJSON
	case ".xlsx":
		return ContentTypeXLSX
	default:
		return "application/octet-stream"
	}
}

// UploadBytesToGCS writes data to gs://bucket/objectName and returns that URI.
// An empty bucket falls back to GCS_BUCKET.
func UploadBytesToGCS(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()
	return UploadBytes(ctx, client, bucketName, objectName, data, contentType)
}

func UploadBytes(ctx context.Context, client *storage.Client, bucketName, objectName string, data []byte, contentType string) (string, error) {
	if bucketName == "" {
		bucketName = os.Getenv("GCS_BUCKET")
	}
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	if objectName == "" {
		return "", errors.New("object name is required")
	}
	if contentType == "" {
		contentType = ContentTypeFor(objectName)
	}

	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		return "", fmt.Errorf("gcs bucket %q not found or not accessible: %v", bucketName, err)
	}

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
