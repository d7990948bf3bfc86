package doses

import (
	"context"
	"errors"
	"time"
)

var ErrPhotosDisabled = errors.New("photo uploads are not configured")

// PhotoUpload es una URL prefirmada para subir la foto de una toma.
// PhotoURL es lo que después se guarda en el log.
type PhotoUpload struct {
	Key       string
	UploadURL string
	PhotoURL  string
	ExpiresAt time.Time
}

type PhotoPresigner interface {
	PresignUpload(ctx context.Context, userID, contentType string) (PhotoUpload, error)
}

var photoExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// PhotoExtension devuelve la extensión para un content type permitido.
func PhotoExtension(contentType string) (string, bool) {
	ext, ok := photoExtensions[contentType]
	return ext, ok
}
