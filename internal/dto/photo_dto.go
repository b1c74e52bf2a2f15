package dto

import (
	"time"

	"github.com/noah-isme/photo-contest-api/internal/models"
)

// PhotoImport registers a photo that is already hosted somewhere.
type PhotoImport struct {
	ID  string `json:"id" validate:"required,max=128,excludesall=/\\"`
	URL string `json:"url" validate:"required,url,max=512"`
}

// PhotoResponse describes a registered photo.
type PhotoResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPhotoResponse maps a photo model.
func NewPhotoResponse(photo models.Photo) PhotoResponse {
	return PhotoResponse{ID: photo.ID, URL: photo.URL, CreatedAt: photo.CreatedAt}
}
