package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

var blockedCIDRs = mustParseCIDRs(
	"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
	"169.254.0.0/16", "0.0.0.0/8", "::1/128", "fc00::/7", "fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

func isBlockedHost(host string) (bool, error) {
	if strings.HasSuffix(strings.ToLower(host), ".local") {
		return true, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		// An unresolvable host can't reach a blocked range; let the HTTP
		// client's own dial error surface as UPSTREAM_ERROR.
		return false, nil
	}
	for _, ip := range ips {
		for _, cidr := range blockedCIDRs {
			if cidr.Contains(ip) {
				return true, nil
			}
		}
	}
	return false, nil
}

// FetchBreakers holds one circuit breaker per host so a single flaky
// upstream can't exhaust retries against every fetch block in the run; it
// is shared across handler invocations via NewFetchHandler's closure.
type FetchBreakers struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewFetchBreakers() *FetchBreakers {
	return &FetchBreakers{breakers: map[string]*gobreaker.CircuitBreaker{}}
}

func (fb *FetchBreakers) forHost(host string) *gobreaker.CircuitBreaker {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if cb, ok := fb.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fetch:" + host,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	fb.breakers[host] = cb
	return cb
}

// NewFetchHandler returns a Handler closing over the per-host breaker set
// (a nil breakers gets a fresh NewFetchBreakers()). Each call builds its own
// *http.Client.
func NewFetchHandler(breakers *FetchBreakers) engine.Handler {
	if breakers == nil {
		breakers = NewFetchBreakers()
	}
	return engine.HandlerFunc(func(ctx context.Context, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
		return fetchHandle(ctx, block, wctx, breakers)
	})
}

func fetchHandle(ctx context.Context, block engine.Block, wctx *engine.WorkflowContext, breakers *FetchBreakers) (engine.BlockResult, error) {
	rawURL := logicString(block, wctx, "fetch_url", "")
	if rawURL == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "fetch_url is required", nil)
	}
	method := strings.ToUpper(logicString(block, wctx, "fetch_method", "GET"))
	timeoutMs := logicInt(block, wctx, "fetch_timeout_ms", 10000)
	maxRetries := logicInt(block, wctx, "fetch_max_retries", 0)
	retryDelayMs := logicInt(block, wctx, "fetch_retry_delay_ms", 500)
	accept := fetchAcceptPatterns(block, wctx)

	host, err := extractHost(rawURL)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "fetch_url: "+err.Error(), err)
	}
	blocked, err := isBlockedHost(host)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, err.Error(), err)
	}
	if blocked {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeSSRFBlocked, "target "+host+" is in a blocked range", nil)
	}

	var bodyReader io.Reader
	if b := logicString(block, wctx, "fetch_body", ""); b != "" {
		bodyReader = bytes.NewBufferString(b)
	}

	client := &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond}
	cb := breakers.forHost(host)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeCancelled, "cancelled during fetch retry wait", ctx.Err())
			case <-time.After(time.Duration(retryDelayMs) * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "fetch request: "+err.Error(), err)
		}
		applyFetchHeaders(req, block, wctx)

		result, err := cb.Execute(func() (any, error) {
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			payload, err := buildFetchResult(resp)
			if err != nil {
				return nil, err
			}
			if !acceptStatus(resp.StatusCode, accept) {
				return nil, fmt.Errorf("status %d not in accepted patterns %v", resp.StatusCode, accept)
			}
			return payload, nil
		})
		if err == nil {
			return engine.BlockResult{StateDelta: bind(block, "response", result)}, nil
		}
		lastErr = err
	}

	return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, lastErr.Error(), lastErr)
}

func fetchAcceptPatterns(block engine.Block, wctx *engine.WorkflowContext) []string {
	v, ok := logicAny(block, wctx, "fetch_accept")
	if !ok {
		return []string{"2xx"}
	}
	items, ok := v.([]any)
	if !ok {
		return []string{"2xx"}
	}
	patterns := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			patterns = append(patterns, s)
		}
	}
	if len(patterns) == 0 {
		return []string{"2xx"}
	}
	return patterns
}

// acceptStatus matches status against wildcard digit patterns like "2xx" or
// "404".
func acceptStatus(status int, patterns []string) bool {
	s := strconv.Itoa(status)
	for _, p := range patterns {
		if len(p) != len(s) {
			continue
		}
		match := true
		for i := range p {
			if p[i] != 'x' && p[i] != 'X' && p[i] != s[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func applyFetchHeaders(req *http.Request, block engine.Block, wctx *engine.WorkflowContext) {
	v, ok := logicAny(block, wctx, "fetch_headers")
	if !ok {
		return
	}
	headers, ok := v.(map[string]any)
	if !ok {
		return
	}
	for k, val := range headers {
		if s, ok := val.(string); ok {
			req.Header.Set(k, s)
		}
	}
}

func buildFetchResult(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]any, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) == 1 {
			headers[k] = vals[0]
		} else {
			headers[k] = vals
		}
	}

	var body any = string(raw)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			body = parsed
		}
	}

	return map[string]any{
		"status":     resp.StatusCode,
		"statusText": resp.Status,
		"headers":    headers,
		"body":       body,
	}, nil
}

func extractHost(rawURL string) (string, error) {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return "", fmt.Errorf("missing scheme")
	}
	rest := rawURL[idx+3:]
	end := strings.IndexAny(rest, "/?#")
	if end >= 0 {
		rest = rest[:end]
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	host, _, err := net.SplitHostPort(rest)
	if err != nil {
		return rest, nil
	}
	return host, nil
}
