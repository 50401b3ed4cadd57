package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/ytget/mediaq/internal/fetch"
	"github.com/ytget/mediaq/internal/locate"
)

// Quality presets
const (
	PresetBest   = "best"
	PresetMedium = "medium"
	PresetAudio  = "audio"
)

// Format selectors per preset
const (
	formatBest   = "bestvideo*+bestaudio/best"
	formatMedium = "bv*[height<=720]+ba/b[height<=720]"
	formatAudio  = "bestaudio/best"
)

// Output filename contract shared with the locator
const outputTemplate = "%(id)s - %(title)s.%(ext)s"

const (
	progressInterval    = 500 * time.Millisecond
	defaultAudioFormat  = "mp3"
	defaultAudioQuality = "192K"
)

// Fetcher downloads and transcodes single items through yt-dlp. It implements
// fetch.Engine.
type Fetcher struct {
	preset       string
	audioFormat  string
	audioQuality string
	locator      *locate.Locator
}

// NewFetcher creates a fetcher with the given quality preset
func NewFetcher(preset string) *Fetcher {
	return &Fetcher{
		preset:       preset,
		audioFormat:  defaultAudioFormat,
		audioQuality: defaultAudioQuality,
		locator:      locate.New(ExtractVideoID),
	}
}

// Fetch runs yt-dlp for one reference and returns the final output path.
// The progress callback may abort the run by returning an error; that error
// is returned unchanged so the caller can distinguish cancellation.
func (f *Fetcher) Fetch(ctx context.Context, req fetch.Request, progress fetch.ProgressFunc) (string, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dl := ytdlp.New().
		NoOverwrites().
		NoPlaylist().
		DownloadArchive(req.ArchivePath).
		Output(filepath.Join(req.OutputDir, outputTemplate))

	switch f.preset {
	case PresetAudio:
		dl = dl.Format(formatAudio).
			ExtractAudio().
			AudioFormat(f.audioFormat).
			AudioQuality(f.audioQuality)
	case PresetMedium:
		dl = dl.Format(formatMedium)
	default:
		dl = dl.Format(formatBest)
	}

	var mu sync.Mutex
	var abortErr error
	dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		ev := fetch.ProgressEvent{
			Status:          mapProgressStatus(update.Status),
			DownloadedBytes: int64(update.DownloadedBytes),
			TotalBytes:      int64(update.TotalBytes),
		}
		if update.Info != nil && update.Info.Title != nil {
			ev.Title = *update.Info.Title
		}
		if err := progress(ev); err != nil {
			mu.Lock()
			if abortErr == nil {
				abortErr = err
			}
			mu.Unlock()
			cancel()
		}
	})

	result, err := dl.Run(runCtx, req.Reference)

	mu.Lock()
	aborted := abortErr
	mu.Unlock()
	if aborted != nil {
		return "", aborted
	}
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	if path := f.outputPathFromResult(result); path != "" {
		return path, nil
	}

	// Archive hits and some extractors finish without filename info; recover
	// the path through the shared filename convention.
	if path, ok := f.locator.Locate(req.Reference, req.OutputDir); ok {
		return path, nil
	}
	return "", fmt.Errorf("yt-dlp: no output file reported for %s", req.Reference)
}

// outputPathFromResult pulls the downloaded filename out of the yt-dlp result,
// adjusting the extension when a post-processor transcoded the audio.
func (f *Fetcher) outputPathFromResult(result *ytdlp.Result) string {
	if result == nil {
		return ""
	}
	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 || info[0].Filename == nil {
		return ""
	}
	path := *info[0].Filename
	if f.preset == PresetAudio {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "." + f.audioFormat
	}
	return path
}

func mapProgressStatus(status ytdlp.ProgressStatus) fetch.ProgressStatus {
	switch status {
	case ytdlp.ProgressStatusError:
		return fetch.ProgressError
	case ytdlp.ProgressStatusFinished, ytdlp.ProgressStatusPostProcessing:
		return fetch.ProgressFinished
	default:
		return fetch.ProgressDownloading
	}
}
