package model

import "time"

type Dimensions struct {
	Width  int
	Height int
}

type ImageVariant string

const (
	VariantOriginal  ImageVariant = "original"
	VariantNormal    ImageVariant = "normal"
	VariantThumbnail ImageVariant = "thumbnail"
)

var ImageVariants = []ImageVariant{VariantOriginal, VariantNormal, VariantThumbnail}

type Image struct {
	ID     ImageID
	PostID PostID

	Hash     string
	Filename string
	Mimetype string

	// Binary variants are only populated by single-image lookups.
	Original     []byte
	OriginalDims Dimensions

	Normal     []byte
	NormalDims Dimensions

	Thumbnail     []byte
	ThumbnailDims Dimensions

	Published bool
	CreatedAt time.Time
}

// Variant returns the bytes held for the given variant.
func (i *Image) Variant(v ImageVariant) []byte {
	switch v {
	case VariantOriginal:
		return i.Original
	case VariantNormal:
		return i.Normal
	case VariantThumbnail:
		return i.Thumbnail
	}
	return nil
}

// SetVariant replaces the bytes held for the given variant.
func (i *Image) SetVariant(v ImageVariant, data []byte) {
	switch v {
	case VariantOriginal:
		i.Original = data
	case VariantNormal:
		i.Normal = data
	case VariantThumbnail:
		i.Thumbnail = data
	}
}

// NewImage carries an upload that has already been resized by the caller.
type NewImage struct {
	PostID   PostID
	Hash     string
	Filename string
	Mimetype string

	Original     []byte
	OriginalDims Dimensions

	Normal     []byte
	NormalDims Dimensions

	Thumbnail     []byte
	ThumbnailDims Dimensions
}

// PublishedImage is an image reference produced by the content rewriter when
// a draft is published.
type PublishedImage struct {
	Filename string
	ImageID  ImageID
	Mimetype string
}
