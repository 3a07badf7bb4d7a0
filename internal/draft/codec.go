// Package draft handles composer persistence: the single-text/thread codec,
// the saved-drafts store, and debounced autosave.
package draft

import (
	"strings"

	"github.com/NEARBuilders/crosspost/internal/domain"
)

// Separator splits thread items when the batch is edited as one text.
const Separator = "---"

// ImagePlaceholder marks, inside the combined text, a later item that
// carries media. The first item's media needs no marker since its position
// is fixed.
const ImagePlaceholder = "[IMAGE]"

// Join renders a batch as one editable text: trimmed item texts separated by
// the separator on its own line. Items past the first that carry media get
// the image placeholder prepended so Split can put the media back.
func Join(batch domain.PostBatch) string {
	parts := make([]string, 0, len(batch))
	for i, post := range batch {
		text := strings.TrimSpace(post.Text)
		if post.HasMedia() && i > 0 && !strings.Contains(text, ImagePlaceholder) {
			text = ImagePlaceholder + "\n" + text
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"+Separator+"\n")
}

// Split parses combined text back into a batch. Media cannot be expressed
// in text, so it is carried over positionally from prev: a later item keeps
// prev's media only when its placeholder survived the edit; the first item
// keeps it unconditionally. Empty segments are dropped, but trailing prev
// items that carried media survive as text-less items: their uploads are
// already live on the platform and must not vanish on an edit. An all-empty
// input with no media yields a single empty post so the composer always has
// something to edit.
func Split(combined string, prev domain.PostBatch) domain.PostBatch {
	var parts []string
	for _, p := range strings.Split(combined, Separator) {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}

	batch := make(domain.PostBatch, 0, len(parts))
	for i, part := range parts {
		hasPlaceholder := strings.Contains(part, ImagePlaceholder)
		text := part
		if hasPlaceholder {
			text = strings.Replace(text, ImagePlaceholder+"\n", "", 1)
			text = strings.ReplaceAll(text, ImagePlaceholder, "")
			text = strings.TrimSpace(text)
		}

		post := domain.Post{Text: text}
		if i < len(prev) && prev[i].HasMedia() && (hasPlaceholder || i == 0) {
			media := *prev[i].Media
			post.Media = &media
		}
		batch = append(batch, post)
	}

	for i := len(parts); i < len(prev); i++ {
		if !prev[i].HasMedia() {
			continue
		}
		media := *prev[i].Media
		batch = append(batch, domain.Post{Media: &media})
	}

	if len(batch) == 0 {
		return domain.PostBatch{{}}
	}
	return batch
}
