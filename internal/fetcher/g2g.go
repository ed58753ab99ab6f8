package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	resultCountPath = "/search_result_count"
	searchPath      = "/search"
)

var (
	// ErrOfferNotFound indicates the configured offer title was absent from
	// the marketplace search results.
	ErrOfferNotFound = errors.New("fetcher: offer not found in search results")
	// ErrKeywordNotResolved indicates the keyword catalog did not contain the
	// configured service, brand, or region terms.
	ErrKeywordNotResolved = errors.New("fetcher: keyword id not resolved")
)

// G2GOptions parameterise the marketplace fetcher.
type G2GOptions struct {
	KeywordURL    string
	SearchBaseURL string
	OfferBaseURL  string
	OfferTitle    string
	ServiceTerm   string
	BrandTerm     string
	RegionName    string
	Country       string
	Currency      string
	Timeout       time.Duration
	UserAgent     string
}

// G2G fetches the lowest listed gold price from the G2G marketplace.
type G2G struct {
	opts   G2GOptions
	logger zerolog.Logger
	client *http.Client
}

// NewG2G constructs a marketplace fetcher.
func NewG2G(opts G2GOptions, logger zerolog.Logger) *G2G {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.KeywordURL == "" {
		opts.KeywordURL = "https://assets.g2g.com/offer/keyword.json"
	}
	opts.SearchBaseURL = strings.TrimRight(opts.SearchBaseURL, "/")
	if opts.SearchBaseURL == "" {
		opts.SearchBaseURL = "https://sls.g2g.com/offer"
	}
	opts.OfferBaseURL = strings.TrimRight(opts.OfferBaseURL, "/")
	if opts.OfferBaseURL == "" {
		opts.OfferBaseURL = "https://www.g2g.com/offer"
	}

	return &G2G{
		opts:   opts,
		logger: logger.With().Str("component", "g2g_fetcher").Logger(),
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// FetchPrice resolves catalog ids, searches offers sorted by lowest price,
// and returns the configured offer's unit price with a deep link to it.
func (g *G2G) FetchPrice(ctx context.Context) (Quote, error) {
	ids, err := g.resolveKeywords(ctx)
	if err != nil {
		return Quote{}, err
	}

	total, err := g.resultCount(ctx, ids)
	if err != nil {
		return Quote{}, err
	}
	if total <= 0 {
		return Quote{}, ErrOfferNotFound
	}

	offers, err := g.searchOffers(ctx, ids, total)
	if err != nil {
		return Quote{}, err
	}

	for _, offer := range offers {
		if offer.Title != g.opts.OfferTitle {
			continue
		}
		price, convErr := decimal.NewFromString(offer.ConvertedUnitPrice.String())
		if convErr != nil {
			return Quote{}, fmt.Errorf("parse unit price: %w", convErr)
		}
		return Quote{
			Price:  price,
			Link:   g.offerLink(ids, offer),
			Source: offer.Title,
		}, nil
	}

	g.logger.Warn().Int("results", len(offers)).Str("title", g.opts.OfferTitle).Msg("offer title missing from search results")
	return Quote{}, ErrOfferNotFound
}

type keywordIDs struct {
	service string
	region  string
	brand   string
}

type keywordEntry struct {
	SeoTerm string `json:"seo_term"`
	En      string `json:"en"`
}

func (g *G2G) resolveKeywords(ctx context.Context) (keywordIDs, error) {
	var catalog map[string]keywordEntry
	if err := g.getJSON(ctx, g.opts.KeywordURL, &catalog); err != nil {
		return keywordIDs{}, fmt.Errorf("fetch keyword catalog: %w", err)
	}

	var ids keywordIDs
	for key, entry := range catalog {
		if entry.SeoTerm == g.opts.ServiceTerm {
			ids.service = key
		}
		if entry.SeoTerm == g.opts.BrandTerm {
			ids.brand = key
		}
		if entry.En == g.opts.RegionName {
			ids.region = key
		}
	}

	if ids.service == "" || ids.region == "" || ids.brand == "" {
		return keywordIDs{}, ErrKeywordNotResolved
	}
	return ids, nil
}

type resultCountResponse struct {
	Payload struct {
		TotalResult int `json:"total_result"`
	} `json:"payload"`
}

func (g *G2G) resultCount(ctx context.Context, ids keywordIDs) (int, error) {
	query := g.searchQuery(ids)
	endpoint := g.opts.SearchBaseURL + resultCountPath + "?" + query.Encode()

	var res resultCountResponse
	if err := g.getJSON(ctx, endpoint, &res); err != nil {
		return 0, fmt.Errorf("fetch result count: %w", err)
	}
	return res.Payload.TotalResult, nil
}

type offerAttribute struct {
	CollectionID string `json:"collection_id"`
	DatasetID    string `json:"dataset_id"`
}

type offerResult struct {
	Title              string           `json:"title"`
	ConvertedUnitPrice json.Number      `json:"converted_unit_price"`
	OfferAttributes    []offerAttribute `json:"offer_attributes"`
}

type searchResponse struct {
	Payload struct {
		Results []offerResult `json:"results"`
	} `json:"payload"`
}

func (g *G2G) searchOffers(ctx context.Context, ids keywordIDs, pageSize int) ([]offerResult, error) {
	query := g.searchQuery(ids)
	query.Set("page_size", fmt.Sprintf("%d", pageSize))
	query.Set("sort", "lowest_price")
	endpoint := g.opts.SearchBaseURL + searchPath + "?" + query.Encode()

	var res searchResponse
	if err := g.getJSON(ctx, endpoint, &res); err != nil {
		return nil, fmt.Errorf("search offers: %w", err)
	}
	return res.Payload.Results, nil
}

func (g *G2G) searchQuery(ids keywordIDs) url.Values {
	query := url.Values{}
	query.Set("service_id", ids.service)
	query.Set("region_id", ids.region)
	query.Set("brand_id", ids.brand)
	query.Set("country", g.opts.Country)
	query.Set("currency", g.opts.Currency)
	return query
}

func (g *G2G) offerLink(ids keywordIDs, offer offerResult) string {
	query := g.searchQuery(ids)
	query.Del("country")
	query.Del("currency")
	if len(offer.OfferAttributes) > 0 {
		attr := offer.OfferAttributes[0]
		query.Set("fa", attr.CollectionID+":"+attr.DatasetID)
	}
	query.Set("sort", "lowest_price")
	query.Set("include_offline", "1")
	return g.opts.OfferBaseURL + "/" + offerSlug(offer.Title) + "?" + query.Encode()
}

// offerSlug rewrites an offer title into the marketplace URL path segment,
// replacing every non-alphanumeric character with a dash.
func offerSlug(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func (g *G2G) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(g.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		if len(payload) > 0 {
			return fmt.Errorf("g2g api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		}
		return fmt.Errorf("g2g api error (%d)", resp.StatusCode)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ PriceFetcher = (*G2G)(nil)
