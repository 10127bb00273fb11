package tracking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/c2c-marketplace/backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func parseHTML(t *testing.T, p *Parser, html string) *Status {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return p.parse(doc)
}

func TestParse(t *testing.T) {
	p := NewParser(nil, []string{" Delivered", "ENTREGADO", ""}, 1000, 0, zap.NewNop())

	tests := []struct {
		name      string
		html      string
		delivered bool
		events    int
	}{
		{
			name:      "status attribute",
			html:      `<div data-tracking-status="Entregado al destinatario"></div>`,
			delivered: true,
		},
		{
			name:      "status text",
			html:      `<span class="tracking-status">In transit</span>`,
			delivered: false,
		},
		{
			name: "newest event",
			html: `<ul>
				<li class="tracking-event">Package  delivered,
					front door</li>
				<li class="tracking-event">Out for delivery</li>
			</ul>`,
			delivered: true,
			events:    2,
		},
		{
			name:      "older event only",
			html:      `<li data-tracking-event>Out for delivery</li><li data-tracking-event>Delivered</li>`,
			delivered: false,
			events:    2,
		},
		{
			name: "empty page",
			html: `<html><body></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := parseHTML(t, p, tt.html)
			assert.Equal(t, tt.delivered, st.Delivered)
			assert.Len(t, st.Events, tt.events)
		})
	}

	st := parseHTML(t, p, `<li class="tracking-event">Package  delivered,
		front door</li>`)
	assert.Equal(t, "Package delivered, front door", st.Events[0])
}

func TestFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/track/MX 123", r.URL.Path)
		_, _ = w.Write([]byte(`<div class="tracking-status">Entregado</div>`))
	}))
	defer srv.Close()

	p := NewParser(map[string]string{"estafeta": srv.URL + "/track/%s"}, []string{"entregado"}, 1000, 1, zap.NewNop())

	assert.True(t, p.Supports(" Estafeta"))
	assert.False(t, p.Supports("dhl"))

	st, err := p.Fetch(context.Background(), "Estafeta", "MX 123")
	require.NoError(t, err)
	assert.True(t, st.Delivered)
	assert.Equal(t, "estafeta", st.Carrier)
	assert.Equal(t, "MX 123", st.TrackingNumber)
	assert.Equal(t, int32(2), hits.Load())

	_, err = p.Fetch(context.Background(), "dhl", "1")
	assert.Equal(t, "unsupported_carrier", apperr.ReasonOf(err))
}

func TestFetchGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewParser(map[string]string{"dhl": srv.URL + "/%s"}, []string{"delivered"}, 1000, 0, zap.NewNop())
	_, err := p.Fetch(context.Background(), "dhl", "1")
	assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
}
