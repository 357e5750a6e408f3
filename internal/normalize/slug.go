// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/eventscout/eventscout/internal/models"
)

const (
	// maxSlugLength caps derived slugs before any uniqueness suffix.
	maxSlugLength = 80

	// maxSlugAttempts bounds the counter-suffix loop; past it the slug
	// falls back to a timestamp suffix to guarantee termination.
	maxSlugAttempts = 100
)

// assignSlug derives a slug from the event title and resolves collisions
// against the lookup with -1, -2, ... suffixes. The lookup pre-check keeps
// slugs readable for the common case; the store additionally resolves any
// remaining race inside its upsert transaction.
func (n *Normalizer) assignSlug(ctx context.Context, e *models.CanonicalEvent) (string, error) {
	base := deriveSlug(e.Title)

	taken, err := n.slugs.ExistsSlug(ctx, base, e.ID)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}

	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		taken, err := n.slugs.ExistsSlug(ctx, candidate, e.ID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return fmt.Sprintf("%s-%d", base, time.Now().UnixMilli()), nil
}

// deriveSlug lowercases the title, strips non-alphanumerics, collapses
// separators to hyphens, and caps the length.
func deriveSlug(title string) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		s = "event"
	}
	return s
}
