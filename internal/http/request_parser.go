// Package http serves the dashboard JSON API.
//
// This file implements utilities for parsing and validating request data:
// the caller's user id, chart query parameters and size-limited JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finboard/internal/visibility"
)

const (
	// UserIDHeader names the caller. Authentication happens in front of this
	// service.
	UserIDHeader = "X-User-ID"
	// DefaultUserID is used when no user header is sent.
	DefaultUserID = "local"

	maxUserIDLength = 128
	maxJSONBody     = 1 << 20
)

// ErrInvalidUser rejects user ids that cannot be used as cache keys.
var ErrInvalidUser = errors.New("invalid user id")

// ParseUserID reads the caller's id from UserIDHeader.
func ParseUserID(r *http.Request) (string, error) {
	id := sanitizeInput(r.Header.Get(UserIDHeader))
	if id == "" {
		return DefaultUserID, nil
	}
	if len(id) > maxUserIDLength || strings.ContainsAny(id, "|\x00") {
		return "", ErrInvalidUser
	}
	return id, nil
}

// ChartParams holds parsed chart query parameters.
type ChartParams struct {
	Filter     string
	Scope      string
	Height     int
	Categories []string
}

// ParseChartParams extracts filter, scope, layout height and selected
// categories. Unparseable heights are ignored.
func ParseChartParams(query url.Values) ChartParams {
	p := ChartParams{
		Filter: strings.TrimSpace(query.Get("filter")),
		Scope:  strings.TrimSpace(query.Get("scope")),
	}
	if p.Scope == "" {
		p.Scope = visibility.ScopeAnalytics
	}
	if v := strings.TrimSpace(query.Get("h")); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			p.Height = h
		}
	}
	for _, raw := range query["categories"] {
		for _, c := range strings.Split(raw, ",") {
			if c = sanitizeInput(c); c != "" {
				p.Categories = append(p.Categories, c)
			}
		}
	}
	return p
}

// ValidScope reports whether scope names a dashboard page.
func ValidScope(scope string) bool {
	return scope == visibility.ScopeAnalytics || scope == visibility.ScopeHome
}

// DecodeJSON reads a size-limited JSON body into v, rejecting unknown
// fields and trailing data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON value")
	}
	return nil
}

// stringValue converts a decoded JSON scalar to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
