// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package normalize

import "regexp"

// CategorizeFunc maps event text to a primary category and the full tag
// set. Pure function by design so a real classifier can replace it.
type CategorizeFunc func(text string) (category string, tags []string)

// DefaultCategory is assigned when no keyword group matches.
const DefaultCategory = "other"

// categoryPattern pairs a category name with its keyword expression.
// Order matters: the first match becomes the primary category.
type categoryPattern struct {
	name string
	re   *regexp.Regexp
}

var categoryPatterns = []categoryPattern{
	{"music", regexp.MustCompile(`(?i)\b(music|concert|jazz|rock|band|dj|hip.?hop|orchestra|symphony|karaoke|singer|acoustic|festival)\b`)},
	{"arts", regexp.MustCompile(`(?i)\b(art|arts|gallery|theater|theatre|museum|exhibit|painting|sculpture|film|cinema|dance|ballet|comedy|improv)\b`)},
	{"food-drink", regexp.MustCompile(`(?i)\b(food|dinner|brunch|tasting|wine|beer|brewery|cocktail|restaurant|culinary|chef|bbq|barbecue)\b`)},
	{"sports", regexp.MustCompile(`(?i)\b(game|match|race|marathon|yoga|fitness|basketball|baseball|soccer|football|hockey|tournament|5k|10k)\b`)},
	{"business", regexp.MustCompile(`(?i)\b(networking|conference|summit|pitch|startup|entrepreneur|career|expo|trade.?show)\b`)},
	{"community", regexp.MustCompile(`(?i)\b(community|volunteer|charity|fundraiser|meetup|market|fair|parade|neighborhood|cleanup)\b`)},
	{"technology", regexp.MustCompile(`(?i)\b(tech|technology|coding|hackathon|software|developer|data|robotics|gaming)\b`)},
	{"education", regexp.MustCompile(`(?i)\b(workshop|class|course|lecture|seminar|training|tutorial|lesson|bootcamp)\b`)},
}

// KeywordCategorizer returns the default categorizer: the concatenated
// title and description run against each keyword group in order. All
// matching groups are kept as tags; the first match is the primary
// category; no match falls back to the catch-all.
func KeywordCategorizer() CategorizeFunc {
	return func(text string) (string, []string) {
		var tags []string
		for _, p := range categoryPatterns {
			if p.re.MatchString(text) {
				tags = append(tags, p.name)
			}
		}
		if len(tags) == 0 {
			return DefaultCategory, []string{DefaultCategory}
		}
		return tags[0], tags
	}
}
