package model

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPageSize is used when a page request doesn't set a size.
	DefaultPageSize = 50
	// MaxPageSize is the biggest page that can be requested.
	MaxPageSize = 500
)

// PageRequest asks for a page of an ordered listing.
type PageRequest struct {
	Size  int
	Token string
}

// Normalize returns the request with the size bounded.
func (p PageRequest) Normalize() PageRequest {
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

// Page is an ordered slice of sandboxes plus the token to get the next one.
// An empty NextToken means there are no more items.
type Page struct {
	Items     []Sandbox
	NextToken string
}

// PageCursor is the position after which the next page starts.
// Listings are ordered by creation time and then by ID.
type PageCursor struct {
	CreatedAt time.Time
	ID        string
}

// After returns true if the sandbox is placed after the cursor in the listing order.
func (c PageCursor) After(s Sandbox) bool {
	if !s.CreatedAt.Equal(c.CreatedAt) {
		return s.CreatedAt.After(c.CreatedAt)
	}
	return s.ID > c.ID
}

// Encode returns the opaque token for the cursor.
func (c PageCursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// CursorFor returns the cursor placed at the sandbox.
func CursorFor(s Sandbox) PageCursor {
	return PageCursor{CreatedAt: s.CreatedAt, ID: s.ID}
}

// DecodePageToken decodes a token created with PageCursor.Encode.
func DecodePageToken(token string) (*PageCursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid page token: %w", ErrNotValid)
	}

	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid page token: %w", ErrNotValid)
	}

	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid page token: %w", ErrNotValid)
	}

	return &PageCursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}
