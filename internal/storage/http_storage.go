package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	fetchAttempts    = 3
	maxFetchedImage  = 32 * 1024 * 1024
	defaultUserAgent = "Go-Flying-Image/1.0"
)

// FetchedImage is a downloaded image payload
type FetchedImage struct {
	Data     []byte
	MimeType string
}

// ImageFetcher downloads result images
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error)
}

// ErrBlockedDestination marks a request the fetcher refused to send
var ErrBlockedDestination = errors.New("destination not allowed")

// HTTPImageFetcher fetches images over HTTP, retrying transient failures
type HTTPImageFetcher struct {
	client  *http.Client
	backoff time.Duration
}

// FetcherOption configures an HTTPImageFetcher
type FetcherOption func(*fetcherOptions)

type fetcherOptions struct {
	redirectGuard func(target string) error
	dialGuard     func(ip net.IP) error
}

// WithRedirectGuard checks every redirect target before it is followed
func WithRedirectGuard(guard func(target string) error) FetcherOption {
	return func(o *fetcherOptions) {
		o.redirectGuard = guard
	}
}

// WithDialGuard checks the resolved address of every connection before it
// is opened
func WithDialGuard(guard func(ip net.IP) error) FetcherOption {
	return func(o *fetcherOptions) {
		o.dialGuard = guard
	}
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(timeout time.Duration, opts ...FetcherOption) *HTTPImageFetcher {
	var options fetcherOptions
	for _, opt := range opts {
		opt(&options)
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if options.dialGuard != nil {
		guard := options.dialGuard
		dialer.Control = func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrBlockedDestination, err)
			}
			if err := guard(net.ParseIP(host)); err != nil {
				return fmt.Errorf("%w: %v", ErrBlockedDestination, err)
			}
			return nil
		}
	}

	transport := &http.Transport{
		DialContext:            dialer.DialContext,
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				if options.redirectGuard != nil {
					if err := options.redirectGuard(req.URL.String()); err != nil {
						return fmt.Errorf("%w: redirect to %s: %v", ErrBlockedDestination, req.URL.Redacted(), err)
					}
				}
				return nil
			},
		},
		backoff: time.Second,
	}
}

// FetchImage downloads imageURL. 5xx and transport errors are retried with
// linear backoff, 4xx fail immediately.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error) {
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		img, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) (*FetchedImage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedDestination) {
			return nil, false, err
		}
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchedImage+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxFetchedImage {
		return nil, false, fmt.Errorf("image exceeds %d bytes", maxFetchedImage)
	}

	mime := mimetype.Detect(data).String()
	if !strings.HasPrefix(mime, "image/") {
		return nil, false, fmt.Errorf("fetched content is not an image (%s)", mime)
	}

	return &FetchedImage{Data: data, MimeType: mime}, false, nil
}
