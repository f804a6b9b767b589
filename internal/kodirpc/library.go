package kodirpc

import (
	"context"
	"encoding/json"
	"sync"
)

const (
	methodOnUpdate        = "VideoLibrary.OnUpdate"
	methodOnScanFinished  = "VideoLibrary.OnScanFinished"
	methodGetMovieDetails = "VideoLibrary.GetMovieDetails"
)

// LibraryEvent is one finished library scan's worth of newly added movies,
// resolved to file paths.
type LibraryEvent struct {
	Paths []string
}

// MovieFile fetches the file path recorded for a library movie id.
func (c *Client) MovieFile(ctx context.Context, movieID int) (string, error) {
	params := map[string]any{
		"movieid":    movieID,
		"properties": []string{"file"},
	}
	var result struct {
		MovieDetails struct {
			File string `json:"file"`
		} `json:"moviedetails"`
	}
	if err := c.Call(ctx, methodGetMovieDetails, params, &result); err != nil {
		return "", err
	}
	return result.MovieDetails.File, nil
}

// WatchLibrary subscribes to library notifications and returns a channel of
// events. Movie additions stream in as OnUpdate notifications while a scan
// runs; their ids are buffered until OnScanFinished, then resolved to file
// paths in one batch. Waiting for the scan to finish matters: the library
// rows for a movie (stream details, settings) are not reliably committed
// until then. OnUpdate without the added flag is a metadata touch, such as
// a playcount bump after playback, and is ignored.
//
// Ids are resolved on a separate goroutine since calls cannot be issued
// from the read loop. The channel closes when the context is cancelled or
// the connection drops.
func (c *Client) WatchLibrary(ctx context.Context) <-chan LibraryEvent {
	var mu sync.Mutex
	var added []int
	seen := make(map[int]struct{})

	scans := make(chan struct{}, 1)
	events := make(chan LibraryEvent, 4)

	c.Handle(methodOnUpdate, func(_ string, data json.RawMessage) {
		var payload struct {
			Added bool `json:"added"`
			Item  struct {
				Type string `json:"type"`
				ID   int    `json:"id"`
			} `json:"item"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			c.logger.Warn("malformed OnUpdate payload", "error", err)
			return
		}
		if !payload.Added || payload.Item.Type != "movie" {
			return
		}
		mu.Lock()
		if _, dup := seen[payload.Item.ID]; !dup {
			seen[payload.Item.ID] = struct{}{}
			added = append(added, payload.Item.ID)
		}
		mu.Unlock()
	})

	c.Handle(methodOnScanFinished, func(_ string, _ json.RawMessage) {
		select {
		case scans <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(events)
		for {
			select {
			case <-scans:
				mu.Lock()
				ids := added
				added = nil
				clear(seen)
				mu.Unlock()

				paths := make([]string, 0, len(ids))
				for _, id := range ids {
					path, err := c.MovieFile(ctx, id)
					if err != nil {
						c.logger.Warn("resolve movie path", "movie_id", id, "error", err)
						continue
					}
					paths = append(paths, path)
				}
				if len(paths) == 0 {
					c.logger.Debug("scan finished with no new movies")
					continue
				}
				select {
				case events <- LibraryEvent{Paths: paths}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}
	}()

	return events
}
