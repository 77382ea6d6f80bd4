package domain

import "context"

// ImageRef identifies one displayable image from the upstream gallery:
// a stable identifier plus the direct image URL viewers should load.
type ImageRef struct {
	ID  string
	URL string
}

// Wall message types sent to connected viewers.
const (
	MessageTypeNew     = "new"
	MessageTypeViewers = "viewers"
)

// WallMessage is the JSON envelope for every server-to-viewer message.
// Exactly one payload shape is populated per type: "new" carries an image
// reference, "viewers" carries the current viewer count.
type WallMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	URL   string `json:"url,omitempty"`
	Count int    `json:"count,omitempty"`
}

// NewImageMessage builds the envelope announcing a freshly discovered image.
func NewImageMessage(ref ImageRef) WallMessage {
	return WallMessage{Type: MessageTypeNew, ID: ref.ID, URL: ref.URL}
}

// NewViewersMessage builds the envelope announcing the current viewer count.
func NewViewersMessage(count int) WallMessage {
	return WallMessage{Type: MessageTypeViewers, Count: count}
}

// Source yields previously unseen image references from the upstream gallery.
// A failed poll is recovered by skipping the cycle; it never reaches viewers.
type Source interface {
	Poll(ctx context.Context) ([]ImageRef, error)
}

// Wall fans encoded messages out to every connected viewer. Broadcast must
// never block, regardless of how many or how slow the viewers are.
type Wall interface {
	Broadcast(data []byte)
	ViewerCount() int
}
