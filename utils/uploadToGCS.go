package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"google.golang.org/api/option"
)

const (
	MaxUploadBytes    = 10 << 20
	StudentPhotoWidth = 400
	ReceiptMaxWidth   = 1600
)

var allowedDocumentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
}

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC; GCS_CREDENTIALS_JSON overrides for local runs.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func gcsBucket() (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucketName, nil
}

// PublicObjectURL is the URL stored on records for an uploaded object.
func PublicObjectURL(objectName string) string {
	bucketName, _ := gcsBucket()
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucketName, objectName)
}

// ResizeImage decodes an image, scales it down to maxWidth (aspect kept) and
// re-encodes it as JPEG. Smaller images are only re-encoded.
func ResizeImage(data []byte, maxWidth int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, NewValidationError("file is not a supported image")
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadUpload reads at most MaxUploadBytes and sniffs the content type.
func ReadUpload(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file content: %v", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, "", NewValidationError("file exceeds %d bytes", MaxUploadBytes)
	}
	if len(data) == 0 {
		return nil, "", NewValidationError("file is empty")
	}
	return data, http.DetectContentType(data), nil
}

// PrepareImageUpload turns an uploaded image into a resized JPEG.
func PrepareImageUpload(r io.Reader, maxWidth int) ([]byte, error) {
	data, mimeType, err := ReadUpload(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, NewValidationError("unsupported file type: %s", mimeType)
	}
	return ResizeImage(data, maxWidth)
}

// PrepareDocumentUpload accepts a PDF as is; images are resized to maxWidth.
func PrepareDocumentUpload(r io.Reader, maxWidth int) ([]byte, string, error) {
	data, mimeType, err := ReadUpload(r)
	if err != nil {
		return nil, "", err
	}
	if !allowedDocumentTypes[mimeType] {
		return nil, "", NewValidationError("unsupported file type: %s", mimeType)
	}
	if mimeType == "application/pdf" {
		return data, mimeType, nil
	}
	resized, err := ResizeImage(data, maxWidth)
	if err != nil {
		return nil, "", err
	}
	return resized, "image/jpeg", nil
}

func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// DeleteObjectFromGCS deletes an object; a missing object is not an error.
func DeleteObjectFromGCS(ctx context.Context, objectName string) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Bucket(bucketName).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// ObjectNameFromURL extracts the object key from a PublicObjectURL.
func ObjectNameFromURL(url string) string {
	bucketName, err := gcsBucket()
	if err != nil {
		return ""
	}
	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", bucketName)
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
