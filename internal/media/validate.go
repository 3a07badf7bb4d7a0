package media

import (
	"fmt"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// Class buckets an upload by the platform's media rules.
type Class int

const (
	ClassUnsupported Class = iota
	// ClassImage is a static image.
	ClassImage
	// ClassAnimated is an animated image (GIF). Shares the video slot rules.
	ClassAnimated
	// ClassVideo is a video file.
	ClassVideo
)

// Size ceilings per media class, matching the platform's published limits.
const (
	MaxImageBytes    = 5 << 20
	MaxAnimatedBytes = 15 << 20
	MaxVideoBytes    = 512 << 20
)

// MaxStaticImages is the most static images one batch item set may carry.
const MaxStaticImages = 4

var mimeClasses = map[string]Class{
	"image/jpeg": ClassImage,
	"image/png":  ClassImage,
	"image/webp": ClassImage,
	"image/gif":  ClassAnimated,
	"video/mp4":  ClassVideo,
	"video/quicktime": ClassVideo,
}

// Classify maps a mime type onto its media class.
func Classify(mimeType string) Class {
	return mimeClasses[mimeType]
}

// ValidateFile rejects unsupported types and files above their class ceiling.
// Runs before any network call.
func ValidateFile(mimeType string, size int64) error {
	class := Classify(mimeType)
	switch class {
	case ClassUnsupported:
		return &domain.MediaValidationError{
			Rule:   "unsupported-type",
			Detail: fmt.Sprintf("%q is not a supported image or video type", mimeType),
		}
	case ClassImage:
		if size > MaxImageBytes {
			return &domain.MediaValidationError{
				Rule:   "image-too-large",
				Detail: fmt.Sprintf("image is %d bytes, limit is %d", size, MaxImageBytes),
			}
		}
	case ClassAnimated:
		if size > MaxAnimatedBytes {
			return &domain.MediaValidationError{
				Rule:   "gif-too-large",
				Detail: fmt.Sprintf("animated image is %d bytes, limit is %d", size, MaxAnimatedBytes),
			}
		}
	case ClassVideo:
		if size > MaxVideoBytes {
			return &domain.MediaValidationError{
				Rule:   "video-too-large",
				Detail: fmt.Sprintf("video is %d bytes, limit is %d", size, MaxVideoBytes),
			}
		}
	}
	return nil
}

// Composition is the media already attached elsewhere in the batch.
type Composition struct {
	StaticImages    int
	VideoOrAnimated int
}

// ValidateAddition checks the batch composition rules for attaching one more
// item of the given class: up to MaxStaticImages static images, or a single
// video/animated item, never mixed.
func ValidateAddition(comp Composition, class Class) error {
	switch class {
	case ClassImage:
		if comp.VideoOrAnimated > 0 {
			return &domain.MediaValidationError{
				Rule:   "mixed-media",
				Detail: "cannot mix static images with video or animated media in one batch",
			}
		}
		if comp.StaticImages >= MaxStaticImages {
			return &domain.MediaValidationError{
				Rule:   "too-many-images",
				Detail: fmt.Sprintf("at most %d static images per batch", MaxStaticImages),
			}
		}
	case ClassAnimated, ClassVideo:
		if comp.VideoOrAnimated > 0 {
			return &domain.MediaValidationError{
				Rule:   "multiple-videos",
				Detail: "at most one video or animated image per batch",
			}
		}
		if comp.StaticImages > 0 {
			return &domain.MediaValidationError{
				Rule:   "mixed-media",
				Detail: "cannot mix static images with video or animated media in one batch",
			}
		}
	default:
		return &domain.MediaValidationError{
			Rule:   "unsupported-type",
			Detail: "unsupported media class",
		}
	}
	return nil
}
