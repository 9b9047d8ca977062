package htmlfix

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ImageValidator reports whether an image URL can be served to a recipient
type ImageValidator interface {
	Valid(ctx context.Context, imageURL string) bool
}

// HTTPImageValidator checks image URLs with a HEAD request and remembers the answer
type HTTPImageValidator struct {
	client *resty.Client

	mu    sync.Mutex
	cache map[string]bool
}

// NewHTTPImageValidator creates a validator whose checks give up after timeout
func NewHTTPImageValidator(timeout time.Duration) *HTTPImageValidator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetHeader("User-Agent", "phish-simulator-image-check/1.0").
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &HTTPImageValidator{client: client, cache: make(map[string]bool)}
}

// Valid returns true for absolute http(s) URLs that answer 2xx with an image content type.
// Data URIs are accepted without a request.
func (v *HTTPImageValidator) Valid(ctx context.Context, imageURL string) bool {
	if strings.HasPrefix(imageURL, "data:image/") {
		return true
	}
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}

	v.mu.Lock()
	ok, seen := v.cache[imageURL]
	v.mu.Unlock()
	if seen {
		return ok
	}

	resp, err := v.client.R().SetContext(ctx).Head(imageURL)
	ok = err == nil && resp.IsSuccess() &&
		strings.HasPrefix(strings.ToLower(resp.Header().Get("Content-Type")), "image/")

	// Cancellation says nothing about the URL
	if ctx.Err() == nil {
		v.mu.Lock()
		v.cache[imageURL] = ok
		v.mu.Unlock()
	}
	return ok
}
