package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// ErrRobotsDisallowed is returned for URLs excluded by the host's robots.txt
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// RobotsChecker checks remote inputs against robots.txt, caching one rule
// group per host
type RobotsChecker struct {
	mu         sync.Mutex
	groups     map[string]*robotstxt.Group
	httpClient *http.Client
	agent      string
}

// NewRobotsChecker creates a checker that matches rules for userAgent's
// product token
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		groups:     make(map[string]*robotstxt.Group),
		httpClient: client,
		agent:      NormalizeUserAgent(userAgent),
	}
}

// Check returns the host's crawl delay, or ErrRobotsDisallowed when the
// path is excluded. An unreachable or unparsable robots.txt allows the fetch.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse URL: %w", err)
	}
	group := r.group(ctx, u)
	if group == nil {
		return 0, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if !group.Test(path) {
		return 0, fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
	}
	return group.CrawlDelay, nil
}

func (r *RobotsChecker) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	origin := u.Scheme + "://" + u.Host

	r.mu.Lock()
	g, ok := r.groups[origin]
	r.mu.Unlock()
	if ok {
		return g
	}

	g = r.fetchGroup(ctx, origin)
	r.mu.Lock()
	r.groups[origin] = g
	r.mu.Unlock()
	return g
}

func (r *RobotsChecker) fetchGroup(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.agent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(r.agent)
}

// NormalizeUserAgent extracts the product token ("claimsynth" from
// "claimsynth/0.1 (+url)") used for robots.txt matching
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
