package extract

import "github.com/andybalholm/cascadia"

var (
	headlineSelector    = cascadia.MustCompile(`[class*=title]`)
	descriptionSelector = cascadia.MustCompile(`[class*="descriptionContainer"]`)
	priceSelector       = cascadia.MustCompile(`span[class^="currentPrice"] > span`)
	labelSelector       = cascadia.MustCompile(`[class^='noLabelValue']`)
	addressSelector     = cascadia.MustCompile(`span[class^='address']`)
	isoDateSelector     = cascadia.MustCompile(`div[class^="datePosted"] > time`)
	legacyDateSelector  = cascadia.MustCompile(`[class^="datePosted"] [title]`)
)
