package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
)

// DefaultMaxURLsPerCell caps URLs taken from one cell; the rest are ignored
const DefaultMaxURLsPerCell = 50

var urlSeparators = regexp.MustCompile(`[,;\s]+`)

// FetcherConfig configures remote image downloads
type FetcherConfig struct {
	MaxURLs   int
	Timeout   time.Duration // per URL
	MaxBytes  int64
	TempDir   string
	UserAgent string
}

// RemoteImage is a downloaded image sitting in a temp file.
// The caller owns Path and must remove it.
type RemoteImage struct {
	URL         string
	Path        string
	ContentType string
	Size        int64
	Order       int
}

// FetchResult holds downloads and per-URL failures, both in input order
type FetchResult struct {
	Images []RemoteImage
	Errors []models.ImageWarning
}

// Cleanup removes every temp file still referenced by the result
func (r FetchResult) Cleanup() {
	for _, img := range r.Images {
		_ = os.Remove(img.Path)
	}
}

// Fetcher downloads images referenced by URL cells
type Fetcher struct {
	client *http.Client
	cfg    FetcherConfig
	logger *logrus.Entry
}

// NewFetcher creates a new remote image fetcher
func NewFetcher(cfg FetcherConfig, client *http.Client, logger *logrus.Entry) *Fetcher {
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = DefaultMaxURLsPerCell
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 15 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "catalog-import/1.0"
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Fetcher{
		client: client,
		cfg:    cfg,
		logger: logger.WithField("component", "image_fetcher"),
	}
}

// SplitURLs extracts http(s) URLs from a cell, keeping at most max
func SplitURLs(cell string, max int) []string {
	var urls []string
	for _, token := range urlSeparators.Split(strings.TrimSpace(cell), -1) {
		if max > 0 && len(urls) >= max {
			break
		}
		u, err := url.Parse(token)
		if err != nil || u.Host == "" {
			continue
		}
		if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
			continue
		}
		urls = append(urls, token)
	}
	return urls
}

type fetchOutcome struct {
	image RemoteImage
	err   error
}

// Fetch downloads every URL of a cell concurrently. It never fails as a
// whole: each bad URL becomes a warning and the rest proceed.
func (f *Fetcher) Fetch(ctx context.Context, cell string) FetchResult {
	urls := SplitURLs(cell, f.cfg.MaxURLs)
	outcomes := make([]fetchOutcome, len(urls))

	var g errgroup.Group
	g.SetLimit(f.cfg.MaxURLs)
	for i, u := range urls {
		g.Go(func() error {
			img, err := f.fetchOne(ctx, u)
			img.Order = i
			outcomes[i] = fetchOutcome{image: img, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var result FetchResult
	for i, o := range outcomes {
		if o.err != nil {
			f.logger.WithError(o.err).WithField("url", urls[i]).Debug("Image fetch failed")
			result.Errors = append(result.Errors, models.ImageWarning{
				URL:     urls[i],
				Source:  models.ImageSourceURL,
				Message: o.err.Error(),
			})
			continue
		}
		result.Images = append(result.Images, o.image)
	}
	return result
}

func (f *Fetcher) fetchOne(ctx context.Context, rawURL string) (RemoteImage, error) {
	img := RemoteImage{URL: rawURL}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return img, fmt.Errorf("invalid request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return img, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return img, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return img, fmt.Errorf("not an image (content type %q)", contentType)
	}
	img.ContentType = contentType

	tmp, err := os.CreateTemp(f.cfg.TempDir, "import-img-*")
	if err != nil {
		return img, fmt.Errorf("failed to create temp file: %w", err)
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	closeErr := tmp.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("download interrupted: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("failed to write temp file: %w", closeErr)
	case n > f.cfg.MaxBytes:
		err = fmt.Errorf("image exceeds %d bytes", f.cfg.MaxBytes)
	case n == 0:
		err = errors.New("empty response body")
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return img, err
	}

	img.Path = tmp.Name()
	img.Size = n
	return img, nil
}
