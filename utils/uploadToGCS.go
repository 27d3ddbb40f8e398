package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsScheme = "gs://"

// maxUploadBytes bounds supporting documents sent to the authority.
const maxUploadBytes = 10 << 20

var ErrUploadNotFound = errors.New("uploaded file not found")

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// UploadedFile is a supporting document loaded into memory for a multipart
// request.
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadedFileLocator finds uploaded files by path. Paths starting with gs://
// are read from Cloud Storage, relative paths resolve against BaseDir.
type UploadedFileLocator struct {
	BaseDir string
}

func NewUploadedFileLocator() *UploadedFileLocator {
	return &UploadedFileLocator{BaseDir: os.Getenv("UPLOADS_DIR")}
}

func (l *UploadedFileLocator) Locate(ctx context.Context, filePath string) (*UploadedFile, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return nil, ErrUploadNotFound
	}
	if strings.HasPrefix(filePath, gcsScheme) {
		return readFromGCS(ctx, filePath)
	}

	resolved := filePath
	if !filepath.IsAbs(resolved) && l.BaseDir != "" {
		resolved = filepath.Join(l.BaseDir, filepath.Clean("/"+resolved))
	}
	f, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, filePath)
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %v", err)
	}
	return newUploadedFile(filepath.Base(resolved), data)
}

func readFromGCS(ctx context.Context, uri string) (*UploadedFile, error) {
	bucketName, objectName, ok := strings.Cut(strings.TrimPrefix(uri, gcsScheme), "/")
	if !ok || bucketName == "" || objectName == "" {
		return nil, fmt.Errorf("invalid gcs path %q", uri)
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, uri)
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %v", uri, err)
	}
	return newUploadedFile(path.Base(objectName), data)
}

func newUploadedFile(name string, data []byte) (*UploadedFile, error) {
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("file %s exceeds %d bytes", name, maxUploadBytes)
	}
	mimeType := detectMimeType(name, data)
	if !allowedMimeTypes[mimeType] {
		return nil, fmt.Errorf("unsupported file type: %s", mimeType)
	}
	return &UploadedFile{Name: name, ContentType: mimeType, Data: data}, nil
}

var allowedMimeTypes = map[string]bool{
	"application/pdf":          true,
	"application/msword":       true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

func detectMimeType(name string, data []byte) string {
	mimeType := http.DetectContentType(data)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}

	// Manually set MIME type for .docx and .xlsx files
	if mimeType == "application/zip" {
		if strings.HasSuffix(name, ".docx") {
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		} else if strings.HasSuffix(name, ".xlsx") {
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	}
	return mimeType
}
