package engine

// Package engine adapts external yt-dlp bindings to the orchestrator's fetch
// and resolve interfaces: downloads via github.com/lrstanley/go-ytdlp,
// playlist enumeration via github.com/ytget/ytdlp/v2, and the stable video id
// parsing rule shared with the locator.
