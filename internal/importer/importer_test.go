package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"property-marketplace/internal/logging"
	"property-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!doctype html>
<html><head>
<title>Ignored</title>
<meta property="og:title" content="Prodej bytu 2+kk 54 m² | Reality Portál">
<meta property="og:description" content="Světlý byt 2+kk o ploše 54 m² v klidné části Prahy.">
<meta property="og:image" content="https://img.example/1.jpg">
<meta property="og:image" content="https://img.example/2.jpg">
<meta property="product:price:amount" content="6 490 000">
<meta property="product:price:currency" content="czk">
</head><body>
<div itemscope itemtype="https://schema.org/Place">
  <span itemprop="streetAddress">Vinohradská 12</span>
  <span itemprop="addressLocality">Praha</span>
</div>
</body></html>`

func TestParseHTML(t *testing.T) {
	draft, err := ParseHTML(strings.NewReader(listingPage), "https://portal.example/1")
	require.NoError(t, err)

	p := draft.Property
	assert.Equal(t, "Prodej bytu 2+kk 54 m²", p.Title)
	assert.Equal(t, int64(6_490_000), p.Price)
	assert.Equal(t, "CZK", p.Currency)
	assert.Equal(t, "Praha", p.City)
	assert.Equal(t, "Vinohradská 12", p.Address)
	assert.Equal(t, "2+kk", p.Disposition)
	require.NotNil(t, p.Area)
	assert.Equal(t, 54.0, *p.Area)
	assert.Equal(t, models.PropertyTypeSale, p.Type)
	assert.Equal(t, []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}, draft.Images)
	assert.Equal(t, "https://img.example/1.jpg", p.ImageURL)
	assert.Contains(t, draft.Details.Description, "Světlý byt")
}

func TestParseHTML_FallbacksAndRent(t *testing.T) {
	page := `<html><body><h1>Pronájem bytu 3+1</h1><p>Cena: 18 500 Kč měsíčně</p></body></html>`
	draft, err := ParseHTML(strings.NewReader(page), "https://portal.example/2")
	require.NoError(t, err)
	assert.Equal(t, "Pronájem bytu 3+1", draft.Property.Title)
	assert.Equal(t, int64(18_500), draft.Property.Price)
	assert.Equal(t, "3+1", draft.Property.Disposition)
	assert.Equal(t, models.PropertyTypeRent, draft.Property.Type)
	assert.Empty(t, draft.Images)
}

func TestParseHTML_NoTitle(t *testing.T) {
	_, err := ParseHTML(strings.NewReader(`<html><body><p>nothing</p></body></html>`), "https://portal.example/3")
	assert.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	cases := map[string]int64{
		"5 490 000":    5_490_000,
		"5.490.000":    5_490_000,
		"5490000.00":   5_490_000,
		"1.000.000,00": 1_000_000,
	}
	for in, want := range cases {
		got, ok := parsePrice(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := parsePrice("na dotaz")
	assert.False(t, ok)
}

func TestImport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	imp := newImporter(5*time.Second, "test-agent", logging.Discard(), true)
	draft, err := imp.Import(context.Background(), srv.URL+"/listing")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/listing", draft.SourceURL)
	assert.Equal(t, "Praha", draft.Property.City)

	_, err = imp.Import(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestImport_RefusesInternalAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	imp := New(5*time.Second, "test-agent", logging.Discard())
	_, err := imp.Import(context.Background(), srv.URL+"/listing")
	require.ErrorIs(t, err, ErrBlockedAddress)

	_, err = imp.Import(context.Background(), "http://localhost:"+srv.URL[strings.LastIndex(srv.URL, ":")+1:]+"/listing")
	require.ErrorIs(t, err, ErrBlockedAddress)
	assert.Zero(t, hits.Load())
}

func TestImport_RefusesRedirectToInternalAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
	}))
	defer srv.Close()

	imp := newImporter(5*time.Second, "test-agent", logging.Discard(), false)
	imp.client.Transport = srv.Client().Transport
	_, err := imp.Import(context.Background(), srv.URL+"/listing")
	require.ErrorIs(t, err, ErrBlockedAddress)
}

func TestInternalAddr(t *testing.T) {
	for _, tc := range []struct {
		addr     string
		internal bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"::ffff:127.0.0.1", true},
		{"93.184.216.34", false},
		{"2606:4700::1111", false},
	} {
		t.Run(tc.addr, func(t *testing.T) {
			assert.Equal(t, tc.internal, internalAddr(netip.MustParseAddr(tc.addr)))
		})
	}
}
