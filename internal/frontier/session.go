package frontier

import (
	"github.com/samber/lo"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

// session is the state owned by one Crawl call. Nothing outside the frontier
// reads or writes it, and it is discarded when Crawl returns.
type session struct {
	seen     map[string]struct{}
	visited  map[string]struct{}
	listings []crawler.Listing
	pages    int
}

func newSession() *session {
	return &session{
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// admit records the URLs not seen before in this session as listings of o
// and returns them. First discovery wins.
func (s *session) admit(o origin.Origin, urls []string) []crawler.Listing {
	fresh := lo.Filter(urls, func(u string, _ int) bool {
		_, dup := s.seen[u]
		return !dup
	})
	added := lo.Map(fresh, func(u string, _ int) crawler.Listing {
		s.seen[u] = struct{}{}
		return crawler.Listing{Origin: o, URL: u}
	})
	s.listings = append(s.listings, added...)
	return added
}

func (s *session) visitPage(u string) {
	s.visited[u] = struct{}{}
}

func (s *session) pageVisited(u string) bool {
	_, ok := s.visited[u]
	return ok
}
