package model

import "time"

// DefaultFolder is assigned to videos uploaded without a folder label.
const DefaultFolder = "General"

// Video is a priced, purchasable media item.  PriceINR is a whole number of
// rupees and is always at least 1.  Inactive videos are hidden from the
// public feed and cannot be purchased.
type Video struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PriceINR     int64     `json:"priceINR"`
	Folder       string    `json:"folder"`
	PreviewURL   string    `json:"previewUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	FileURL      string    `json:"fileUrl"`
	AccessToken  string    `json:"qrCodeId,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
