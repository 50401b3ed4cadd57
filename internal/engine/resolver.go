package engine

import (
	"context"
	"fmt"
	"strings"

	ytdlpv2 "github.com/ytget/ytdlp/v2"

	"github.com/ytget/mediaq/internal/resolve"
)

// URL parameters and separators
const (
	playlistParam  = "list="
	paramSeparator = "&"
)

// URL templates
const videoURLTemplate = "https://www.youtube.com/watch?v=%s"

// Resolver expands references through yt-dlp playlist enumeration. It
// implements resolve.Engine.
type Resolver struct{}

// NewResolver creates a new resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve reports whether the reference denotes a playlist and enumerates its
// entries. A plain video reference resolves as a single item whose title is
// refined later, during the fetch itself.
func (r *Resolver) Resolve(ctx context.Context, reference string) (*resolve.Metadata, error) {
	if !strings.Contains(reference, playlistParam) {
		return &resolve.Metadata{}, nil
	}

	playlistID := extractPlaylistID(reference)
	if playlistID == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", reference)
	}

	d := ytdlpv2.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	entries := make([]resolve.Entry, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		entries = append(entries, resolve.Entry{
			Reference: fmt.Sprintf(videoURLTemplate, it.VideoID),
			Title:     it.Title,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("playlist %s has no entries", playlistID)
	}

	return &resolve.Metadata{IsCollection: true, Entries: entries}, nil
}

// extractPlaylistID extracts the playlist ID from various URL formats
func extractPlaylistID(reference string) string {
	if !strings.Contains(reference, playlistParam) {
		return ""
	}
	parts := strings.Split(reference, playlistParam)
	if len(parts) < 2 {
		return ""
	}
	playlistPart := parts[1]
	if strings.Contains(playlistPart, paramSeparator) {
		playlistPart = strings.Split(playlistPart, paramSeparator)[0]
	}
	return playlistPart
}
