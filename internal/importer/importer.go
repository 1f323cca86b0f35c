// Package importer builds draft listings from external listing pages using
// their OpenGraph and schema.org metadata.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"property-marketplace/internal/models"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxPageSize  = 5 << 20
	maxRedirects = 10
)

// ErrBlockedAddress is returned when a page resolves to a loopback,
// private, link-local or otherwise internal address.
var ErrBlockedAddress = errors.New("address not allowed")

var (
	dispositionPattern = regexp.MustCompile(`(?i)\b([1-9]\+(?:kk|1))\b`)
	areaPattern        = regexp.MustCompile(`([0-9]+(?:[.,][0-9]+)?)\s*m(?:²|2)`)
	pricePattern       = regexp.MustCompile(`([0-9][0-9\s\x{00a0}.]*[0-9])\s*(?:Kč|CZK)`)
)

// Draft is a listing prefilled from an external page. The owner reviews it
// before it is created.
type Draft struct {
	SourceURL string                 `json:"source_url"`
	Property  models.Property        `json:"property"`
	Details   models.PropertyDetails `json:"details"`
	Images    []string               `json:"images"`
}

// Importer fetches and parses listing pages
type Importer struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// New creates an importer. Pages on internal networks are refused.
func New(timeout time.Duration, userAgent string, logger *slog.Logger) *Importer {
	return newImporter(timeout, userAgent, logger, false)
}

func newImporter(timeout time.Duration, userAgent string, logger *slog.Logger, allowInternal bool) *Importer {
	jar, err := cookiejar.New(nil)
	if err != nil {
		logger.Warn("failed to create cookie jar", "err", err)
		jar = nil
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	if !allowInternal {
		dialer.Control = refuseInternal
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	client := &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to %s: unsupported scheme", req.URL.Redacted())
			}
			if !allowInternal {
				if ip, err := netip.ParseAddr(req.URL.Hostname()); err == nil && internalAddr(ip) {
					return fmt.Errorf("redirect to %s: %w", req.URL.Hostname(), ErrBlockedAddress)
				}
			}
			return nil
		},
	}
	return &Importer{
		client:    client,
		userAgent: userAgent,
		logger:    logger.With("component", "importer"),
	}
}

// refuseInternal runs after name resolution, so it also covers hostnames
// and redirects that point at internal addresses.
func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, ErrBlockedAddress)
	}
	if internalAddr(ip) {
		return fmt.Errorf("dial %s: %w", address, ErrBlockedAddress)
	}
	return nil
}

func internalAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast()
}

// Import fetches a page and extracts a draft listing from it
func (i *Importer) Import(ctx context.Context, pageURL string) (*Draft, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if i.userAgent != "" {
		req.Header.Set("User-Agent", i.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "cs-CZ,cs;q=0.9,en;q=0.8")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	draft, err := ParseHTML(io.LimitReader(resp.Body, maxPageSize), pageURL)
	if err != nil {
		return nil, err
	}
	i.logger.Info("imported listing", "url", pageURL, "title", draft.Property.Title, "images", len(draft.Images))
	return draft, nil
}

// ParseHTML extracts a draft listing from a page
func ParseHTML(r io.Reader, sourceURL string) (*Draft, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	draft := &Draft{SourceURL: sourceURL, Images: []string{}}
	p := &draft.Property

	p.Title = cleanTitle(firstNonEmpty(
		meta(doc, "og:title"),
		doc.Find("[itemprop='name']").First().Text(),
		doc.Find("h1").First().Text(),
		doc.Find("title").First().Text(),
	))
	if p.Title == "" {
		return nil, fmt.Errorf("no title found on %s", sourceURL)
	}

	draft.Details.Description = strings.TrimSpace(firstNonEmpty(
		meta(doc, "og:description"),
		meta(doc, "description"),
		doc.Find("[itemprop='description']").First().Text(),
	))

	seen := map[string]bool{}
	doc.Find("meta[property='og:image'], [itemprop='image']").Each(func(_ int, s *goquery.Selection) {
		src := firstNonEmpty(s.AttrOr("content", ""), s.AttrOr("src", ""))
		if src != "" && !seen[src] {
			seen[src] = true
			draft.Images = append(draft.Images, src)
		}
	})
	if len(draft.Images) > 0 {
		p.ImageURL = draft.Images[0]
	}

	priceText := firstNonEmpty(
		meta(doc, "product:price:amount"),
		doc.Find("[itemprop='price']").First().AttrOr("content", ""),
		doc.Find("[itemprop='price']").First().Text(),
	)
	if price, ok := parsePrice(priceText); ok {
		p.Price = price
	} else if m := pricePattern.FindStringSubmatch(doc.Text()); len(m) > 1 {
		p.Price, _ = parsePrice(m[1])
	}
	if currency := meta(doc, "product:price:currency"); currency != "" {
		p.Currency = strings.ToUpper(currency)
	}

	p.City = strings.TrimSpace(firstNonEmpty(
		doc.Find("[itemprop='addressLocality']").First().AttrOr("content", ""),
		doc.Find("[itemprop='addressLocality']").First().Text(),
		meta(doc, "og:locality"),
	))
	p.Address = strings.TrimSpace(firstNonEmpty(
		doc.Find("[itemprop='streetAddress']").First().AttrOr("content", ""),
		doc.Find("[itemprop='streetAddress']").First().Text(),
	))

	text := p.Title + " " + draft.Details.Description
	if m := dispositionPattern.FindStringSubmatch(text); len(m) > 1 {
		p.Disposition = strings.ToLower(m[1])
	}
	if area := extractArea(text); area > 0 {
		p.Area = &area
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "pronáj") || strings.Contains(lower, "for rent") {
		p.Type = models.PropertyTypeRent
	} else {
		p.Type = models.PropertyTypeSale
	}

	return draft, nil
}

func meta(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf("meta[property='%s'], meta[name='%s']", name, name)).First()
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parsePrice reads amounts like "5 490 000", "5.490.000" or "5490000.00"
func parsePrice(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if idx := strings.LastIndexAny(s, ",."); idx >= 0 && len(s)-idx == 3 {
		s = s[:idx]
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractArea(text string) float64 {
	m := areaPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	// Validate: residential area should be reasonable
	if err != nil || val < 5 || val > 2000 {
		return 0
	}
	return val
}

// cleanTitle strips the portal name appended after a separator
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | ", " - ", " – "} {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			title = title[:idx]
		}
	}
	return strings.TrimSpace(title)
}
