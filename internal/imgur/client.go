package imgur

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/llebout/random-imgur-wall/internal/domain"
	"github.com/llebout/random-imgur-wall/internal/metrics"
)

const requestTimeout = 10 * time.Second

// Sentinel errors for the two upstream failure modes. Both are non-fatal:
// the relay loop logs and retries at the next poll interval.
var (
	// ErrSourceUnavailable covers transport failures, non-2xx statuses, and
	// rate-limiter denials.
	ErrSourceUnavailable = errors.New("imgur gallery unavailable")
	// ErrSourceMalformed covers responses that cannot be decoded into gallery items.
	ErrSourceMalformed = errors.New("imgur gallery returned malformed response")
)

type galleryResponse struct {
	Data    []galleryItem `json:"data"`
	Success bool          `json:"success"`
}

type galleryItem struct {
	ID      string `json:"id"`
	Link    string `json:"link"`
	Type    string `json:"type"`
	IsAlbum bool   `json:"is_album"`
}

// Client polls the Imgur gallery API and yields only previously unseen
// images. It owns the recent-set dedup window exclusively and is not safe
// for concurrent use: the relay loop is its only caller.
type Client struct {
	httpClient *http.Client
	endpoint   string
	clientID   string
	limiter    *rate.Limiter
	recent     *recentSet
}

// NewClient creates a gallery client. recentSetSize bounds the dedup window;
// limit/burst cap outbound request rate independently of the poll interval.
func NewClient(endpoint, clientID string, recentSetSize int, limit rate.Limit, burst int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		endpoint:   endpoint,
		clientID:   clientID,
		limiter:    rate.NewLimiter(limit, burst),
		recent:     newRecentSet(recentSetSize),
	}
}

// Poll fetches the gallery once and returns the images not seen within the
// recent-set window, in upstream order. Returned images are recorded as seen
// before Poll returns.
func (c *Client) Poll(ctx context.Context) ([]domain.ImageRef, error) {
	start := time.Now()
	defer func() {
		metrics.SourcePollDuration.Observe(time.Since(start).Seconds())
	}()

	items, err := c.fetch(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrSourceMalformed):
			metrics.SourcePollsTotal.WithLabelValues("malformed").Inc()
		default:
			metrics.SourcePollsTotal.WithLabelValues("unavailable").Inc()
		}
		return nil, err
	}
	metrics.SourcePollsTotal.WithLabelValues("ok").Inc()

	var refs []domain.ImageRef
	for _, item := range items {
		ref, ok := toImageRef(item)
		if !ok {
			continue
		}
		if c.recent.contains(ref.ID) {
			metrics.SourceImagesDuplicate.Inc()
			continue
		}
		c.recent.add(ref.ID)
		metrics.SourceImagesNew.Inc()
		refs = append(refs, ref)
	}
	return refs, nil
}

func (c *Client) fetch(ctx context.Context) ([]galleryItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: awaiting rate limiter: %v", ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var gallery galleryResponse
	if err := json.NewDecoder(resp.Body).Decode(&gallery); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
	}
	if !gallery.Success {
		return nil, fmt.Errorf("%w: success=false in response body", ErrSourceMalformed)
	}
	return gallery.Data, nil
}

// toImageRef maps a gallery item to an ImageRef. Imgur galleries mix albums
// and direct images; only directly displayable images are kept.
func toImageRef(item galleryItem) (domain.ImageRef, bool) {
	if item.IsAlbum || item.ID == "" || item.Link == "" {
		return domain.ImageRef{}, false
	}
	if item.Type != "" && !strings.HasPrefix(item.Type, "image/") {
		return domain.ImageRef{}, false
	}
	return domain.ImageRef{ID: item.ID, URL: item.Link}, true
}
