package gateway

import "context"

// MediaResolver turns a received media message into a retrievable URL.
type MediaResolver interface {
	ResolveMediaURL(ctx context.Context, messageID, messageType string) *string
}

// PlaceholderResolver does not download media. It returns a fixed
// "<type>_url_placeholder" marker for media messages and nil otherwise.
type PlaceholderResolver struct{}

// ResolveMediaURL implements MediaResolver
func (PlaceholderResolver) ResolveMediaURL(_ context.Context, _ string, messageType string) *string {
	switch messageType {
	case "image", "video", "audio", "document":
		url := messageType + "_url_placeholder"
		return &url
	default:
		return nil
	}
}
