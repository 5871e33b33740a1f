package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"foodcost/api/objectstore"
)

// MaxUploadSize caps a single image upload.
const MaxUploadSize = 4 << 20

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/avif": "avif",
}

var uploadFolders = map[string]bool{
	"cases":        true,
	"testimonials": true,
	"general":      true,
}

type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type UploadHandlers struct {
	Store Uploader
	now   func() time.Time
}

func NewUploadHandlers(s Uploader) *UploadHandlers {
	return &UploadHandlers{Store: s, now: time.Now}
}

// UploadImage accepts multipart "file" plus an optional "folder".
func (h *UploadHandlers) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	contentType := fh.Header.Get("Content-Type")
	ext, ok := imageExtensions[contentType]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only JPEG, PNG, WebP and AVIF images are allowed"})
		return
	}
	if fh.Size > MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is larger than 4MB"})
		return
	}

	folder := c.PostForm("folder")
	if !uploadFolders[folder] {
		folder = "general"
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is larger than 4MB"})
		return
	}

	key := objectstore.NewKey(folder, ext, h.now())
	url, err := h.Store.Upload(c.Request.Context(), key, data, contentType)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Error uploading image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
