// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSlogAdapter_Attributes(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(orig)

	NewSlogLogger().Info("supervised", "service", "http-server", "restarts", int64(2))

	out := buf.String()
	if !strings.Contains(out, `"service":"http-server"`) {
		t.Errorf("expected string attribute, got %q", out)
	}
	if !strings.Contains(out, `"restarts":2`) {
		t.Errorf("expected int attribute, got %q", out)
	}
	if !strings.Contains(out, `"message":"supervised"`) {
		t.Errorf("expected message, got %q", out)
	}
}

func TestSlogAdapter_GroupPrefixOrder(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(orig)

	// Nested groups prefix outermost-first: outer, then inner.
	NewSlogLogger().WithGroup("outer").WithGroup("inner").Info("grouped", "key", "v")

	out := buf.String()
	if !strings.Contains(out, `"outer.inner.key":"v"`) {
		t.Errorf("expected outer.inner.key, got %q", out)
	}
}
