package tracking

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/c2c-marketplace/backend/internal/apperr"
	"go.uber.org/zap"
)

// Status is what a carrier's public tracking page says about one shipment.
type Status struct {
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	StatusText     string    `json:"status_text,omitempty"`
	Events         []string  `json:"events,omitempty"`
	Delivered      bool      `json:"delivered"`
	FetchedAt      time.Time `json:"fetched_at"`
}

type Parser struct {
	httpClient *http.Client
	templates  map[string]string
	keywords   []string
	maxRetries int
	log        *zap.Logger
}

// NewParser builds a parser for the carriers in templates. Each template holds
// one %s for the escaped tracking number.
func NewParser(templates map[string]string, keywords []string, timeoutMS, maxRetries int, log *zap.Logger) *Parser {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Parser{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		templates:  templates,
		keywords:   kw,
		maxRetries: maxRetries,
		log:        log,
	}
}

func (p *Parser) Supports(carrier string) bool {
	_, ok := p.templates[strings.ToLower(strings.TrimSpace(carrier))]
	return ok
}

func (p *Parser) Fetch(ctx context.Context, carrier, trackingNumber string) (*Status, error) {
	key := strings.ToLower(strings.TrimSpace(carrier))
	tmpl, ok := p.templates[key]
	if !ok {
		return nil, apperr.Validation("unsupported_carrier", fmt.Sprintf("no tracking page configured for carrier %q", carrier))
	}
	pageURL := fmt.Sprintf(tmpl, url.PathEscape(trackingNumber))

	doc, err := p.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "tracking_unavailable", "carrier tracking page unavailable")
	}

	st := p.parse(doc)
	st.Carrier = key
	st.TrackingNumber = trackingNumber
	st.FetchedAt = time.Now().UTC()
	return st, nil
}

func (p *Parser) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; marketplace-tracking/1.0)")
		req.Header.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.8")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, pageURL)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return doc, nil
	}
	p.log.Debug("tracking fetch failed", zap.String("url", pageURL), zap.Error(lastErr))
	return nil, lastErr
}

// parse reads the headline status and the event list. The page is delivered
// when either the headline or the newest event matches a keyword.
func (p *Parser) parse(doc *goquery.Document) *Status {
	st := &Status{}

	headline := doc.Find("[data-tracking-status]").First()
	if v, ok := headline.Attr("data-tracking-status"); ok && strings.TrimSpace(v) != "" {
		st.StatusText = strings.TrimSpace(v)
	} else if t := strings.TrimSpace(doc.Find(".tracking-status").First().Text()); t != "" {
		st.StatusText = t
	}

	doc.Find(".tracking-event, [data-tracking-event]").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			st.Events = append(st.Events, text)
		}
	})

	st.Delivered = p.matches(st.StatusText)
	if !st.Delivered && len(st.Events) > 0 {
		st.Delivered = p.matches(st.Events[0])
	}
	return st
}

func (p *Parser) matches(text string) bool {
	text = strings.ToLower(text)
	if text == "" {
		return false
	}
	for _, k := range p.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
