package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/hiraku00/scraping-img/config"
	"github.com/hiraku00/scraping-img/models"
)

// StaticEngine is the lightweight fetch path: a plain HTTP GET with a
// Chrome-like TLS fingerprint and browser headers, no script execution.
type StaticEngine struct {
	client *http.Client
	cfg    config.FetchConfig
}

// chromeHelloSpec builds a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Specs carry per-handshake extension state, so every
// connection needs a freshly built one.
func chromeHelloSpec() (*tls.ClientHelloSpec, error) {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return nil, err
	}
	// Drop h2 from ALPN so the server never negotiates HTTP/2, which Go's
	// http.Transport cannot speak over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return &spec, nil
}

// NewStaticEngine creates a StaticEngine bound to the fetch configuration.
func NewStaticEngine(cfg config.FetchConfig) *StaticEngine {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			spec, err := chromeHelloSpec()
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("static: build tls spec: %w", err)
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("static: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &StaticEngine{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (e *StaticEngine) Name() Strategy { return StrategyStatic }

// Fetch issues the GET, following redirects, and records the final URL.
// Timeouts, transport errors, non-2xx statuses, and non-HTML bodies are all
// converted into typed errors so the orchestrator can escalate.
func (e *StaticEngine) Fetch(ctx context.Context, pageURL string) (*PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StaticTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeInvalidInput, "static: build request", err)
	}

	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewResolveError(models.ErrCodeTimeout, "static: request timed out", err)
		}
		return nil, models.NewResolveError(models.ErrCodeFetchFailed, "static: request failed", err)
	}
	defer resp.Body.Close()

	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewResolveError(models.ErrCodeTimeout, "static: body read timed out", err)
		}
		return nil, models.NewResolveError(models.ErrCodeFetchFailed, "static: read body", err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return nil, models.NewResolveError(
			models.ErrCodeFetchFailed,
			fmt.Sprintf("static: status %d, content-type %q", resp.StatusCode, ct),
			nil,
		)
	}

	bodyStr := string(body)
	return &PageResult{
		HTML:       bodyStr,
		FinalURL:   resp.Request.URL.String(),
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		Strategy:   StrategyStatic,
	}, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
