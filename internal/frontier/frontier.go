// Package frontier walks each origin's paginated search results and produces
// the distinct set of listing URLs for one crawl session.
package frontier

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/logging"
	"github.com/JakeFAU/apartment-crawler/internal/metrics"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

const (
	// DefaultBaseURL is the classifieds site root.
	DefaultBaseURL = "https://www.kijiji.ca"

	apartmentsCategory = "b-appartement-condo"
	categoryID         = "c37"
)

var (
	listingLinkSelector = cascadia.MustCompile(".info-container a.title")
	nextPageSelector    = cascadia.MustCompile(`[title~="Suivante"]`)
)

// IndexPage is one fetched page of search results. It is consumed as soon as
// its links are read and is never persisted.
type IndexPage struct {
	Origin origin.Origin
	URL    string
	Doc    *goquery.Document
	Index  int
}

// Frontier drives pagination through a Fetcher.
type Frontier struct {
	fetcher crawler.Fetcher
	base    *url.URL
	logger  *zap.Logger
}

// New builds a Frontier rooted at baseURL.
func New(fetcher crawler.Fetcher, baseURL string, logger *zap.Logger) (*Frontier, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return &Frontier{
		fetcher: fetcher,
		base:    base,
		logger:  logging.OrNop(logger).Named("frontier"),
	}, nil
}

// IndexURL returns the first results page for an origin.
func (f *Frontier) IndexURL(o origin.Origin) string {
	u := *f.base
	u.Path = strings.TrimRight(f.base.Path, "/") + "/" + apartmentsCategory + "/" + o.RegionPath + "/" + categoryID + o.RegionID
	u.RawQuery = url.Values{"ad": {"offering"}}.Encode()
	return u.String()
}

// Crawl walks every origin in order and returns the distinct listings in
// discovery order. Each origin's chain of pages is followed to its end before
// the next origin starts, so an origin listed earlier owns any URL it shares
// with a later one. A fetch failure that exhausts its retries aborts the crawl.
func (f *Frontier) Crawl(ctx context.Context, origins []origin.Origin) ([]crawler.Listing, error) {
	s := newSession()
	for _, o := range origins {
		if err := f.walk(ctx, s, o); err != nil {
			return nil, err
		}
	}
	f.logger.Info("frontier complete", zap.Int("listings", len(s.listings)), zap.Int("pages", s.pages))
	return s.listings, nil
}

func (f *Frontier) walk(ctx context.Context, s *session, o origin.Origin) error {
	startURL := f.IndexURL(o)
	f.logger.Info("fetching initial results page", zap.String("origin", o.FullName), zap.String("url", startURL))
	first, err := f.fetchPage(ctx, o, startURL, 0)
	if err != nil {
		return err
	}

	work := []IndexPage{first}
	for len(work) > 0 {
		page := work[0]
		work = work[1:]
		s.visitPage(page.URL)
		s.pages++

		fresh := s.admit(o, f.listingURLs(page))
		metrics.ObserveIndexPage(o.ShortCode)
		metrics.ObserveListings(o.ShortCode, len(fresh))
		f.logger.Info("read results page",
			zap.String("origin", o.FullName),
			zap.Int("page", page.Index),
			zap.Int("new_listings", len(fresh)),
		)

		next, ok := f.nextPageURL(page)
		if !ok {
			f.logger.Info("origin exhausted", zap.String("origin", o.FullName), zap.Int("pages", page.Index+1))
			continue
		}
		if s.pageVisited(next) {
			f.logger.Warn("next page already visited, stopping origin",
				zap.String("origin", o.FullName),
				zap.String("url", next),
			)
			continue
		}
		nextPage, err := f.fetchPage(ctx, o, next, page.Index+1)
		if err != nil {
			return err
		}
		work = append(work, nextPage)
	}
	return nil
}

func (f *Frontier) fetchPage(ctx context.Context, o origin.Origin, pageURL string, index int) (IndexPage, error) {
	body, err := f.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return IndexPage{}, fmt.Errorf("fetch %s page %d: %w", o.ShortCode, index, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return IndexPage{}, fmt.Errorf("parse %s page %d: %w", o.ShortCode, index, err)
	}
	return IndexPage{Origin: o, URL: pageURL, Doc: doc, Index: index}, nil
}

// listingURLs returns the absolute listing URLs on a page in document order,
// without repeats.
func (f *Frontier) listingURLs(page IndexPage) []string {
	var urls []string
	page.Doc.FindMatcher(listingLinkSelector).Each(func(_ int, sel *goquery.Selection) {
		if abs, ok := f.resolve(sel); ok {
			urls = append(urls, abs)
		}
	})
	return lo.Uniq(urls)
}

func (f *Frontier) nextPageURL(page IndexPage) (string, bool) {
	next := page.Doc.FindMatcher(nextPageSelector).First()
	if next.Length() == 0 {
		return "", false
	}
	return f.resolve(next)
}

func (f *Frontier) resolve(sel *goquery.Selection) (string, bool) {
	href, ok := sel.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false
	}
	u, err := f.base.Parse(href)
	if err != nil {
		f.logger.Debug("skipping unparsable href", zap.String("href", href), zap.Error(err))
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
