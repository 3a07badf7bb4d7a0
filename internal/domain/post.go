package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MediaHandle links a post to media that has already been uploaded to the
// platform. PlatformMediaID is assigned by the upload endpoint and is required
// before the media can be attached to a publish call. PreviewURL is a
// client-local resource with no server meaning.
type MediaHandle struct {
	PlatformMediaID string `json:"mediaId"`
	PreviewURL      string `json:"mediaPreview,omitempty"`
}

// Post is one content item of a batch: the text plus an optional reference to
// already-uploaded media.
type Post struct {
	Text  string
	Media *MediaHandle
}

// The wire and storage shape is flat: {text, mediaId?, mediaPreview?}.
type postJSON struct {
	Text         string `json:"text"`
	MediaID      string `json:"mediaId,omitempty"`
	MediaPreview string `json:"mediaPreview,omitempty"`
}

func (p Post) MarshalJSON() ([]byte, error) {
	out := postJSON{Text: p.Text}
	if p.Media != nil {
		out.MediaID = p.Media.PlatformMediaID
		out.MediaPreview = p.Media.PreviewURL
	}
	return json.Marshal(out)
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var in postJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Text = in.Text
	p.Media = nil
	if strings.TrimSpace(in.MediaID) != "" {
		p.Media = &MediaHandle{PlatformMediaID: in.MediaID, PreviewURL: in.MediaPreview}
	}
	return nil
}

// HasMedia reports whether the post carries an uploaded media reference.
func (p Post) HasMedia() bool {
	return p.Media != nil && strings.TrimSpace(p.Media.PlatformMediaID) != ""
}

// Empty reports whether the post has neither text (after trimming) nor media.
func (p Post) Empty() bool {
	return strings.TrimSpace(p.Text) == "" && !p.HasMedia()
}

// PostBatch is an ordered sequence of posts. Length 1 is a single post,
// anything longer is a thread; the order is the reply-chain order.
type PostBatch []Post

// Empty reports whether every post in the batch is empty.
func (b PostBatch) Empty() bool {
	for _, p := range b {
		if !p.Empty() {
			return false
		}
	}
	return true
}

var (
	// ErrEmptyBatch indicates a publish request without any posts.
	ErrEmptyBatch = errors.New("posts: batch is empty")
	// ErrEmptyPostText indicates a post whose trimmed text is empty. The
	// platform rejects text-less posts, so this is enforced at the boundary.
	ErrEmptyPostText = errors.New("posts: post text is empty")
)

// ValidateForPublish checks the batch once at the system boundary. Posts
// deeper in the pipeline assume a batch that passed this check.
func (b PostBatch) ValidateForPublish() error {
	if len(b) == 0 {
		return ErrEmptyBatch
	}
	for _, p := range b {
		if strings.TrimSpace(p.Text) == "" {
			return ErrEmptyPostText
		}
	}
	return nil
}

// Draft is a saved batch. Immutable once stored, deleted explicitly by ID.
type Draft struct {
	ID        string    `json:"id"`
	Posts     PostBatch `json:"posts"`
	CreatedAt time.Time `json:"createdAt"`
}

// Autosave is the singleton in-progress batch, overwritten on every debounced
// save and cleared after a successful publish.
type Autosave struct {
	Posts     PostBatch `json:"posts"`
	UpdatedAt time.Time `json:"updatedAt"`
}
