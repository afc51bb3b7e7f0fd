package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	cursorVersion = "v1"
)

// Params is the raw page request read from a query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor marks the last row of a page in (created_at DESC, id DESC) order. Scope names the
// listing it was minted for, so a cursor from the audit trail cannot page restock requests
// and a pending-only cursor cannot page the full history.
type Cursor struct {
	Scope     string
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit maps zero to DefaultLimit and clamps anything above MaxLimit.
// Negative limits are rejected by callers before they get here.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Validate rejects negative limits.
func (p Params) Validate() error {
	if p.Limit < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "limit must not be negative").
			WithDetails(map[string]any{"field": "limit"})
	}
	return nil
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	payload := strings.Join([]string{
		cursorVersion,
		c.Scope,
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.ID.String(),
	}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a token minted for scope. An empty token means the first page.
func ParseCursor(value, scope string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, invalidCursor(err)
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 4 || parts[0] != cursorVersion {
		return nil, invalidCursor(fmt.Errorf("unexpected cursor layout"))
	}
	if parts[1] != scope {
		return nil, invalidCursor(fmt.Errorf("cursor belongs to %q, not %q", parts[1], scope))
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[2])
	if err != nil {
		return nil, invalidCursor(err)
	}
	id, err := uuid.Parse(parts[3])
	if err != nil {
		return nil, invalidCursor(err)
	}
	return &Cursor{Scope: scope, CreatedAt: createdAt, ID: id}, nil
}

func invalidCursor(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
		WithDetails(map[string]any{"field": "cursor"})
}

// Keyset orders query newest first, skips rows up to and including cursor, and fetches one
// row beyond the page so Trim can tell whether another page exists.
func Keyset(query *gorm.DB, cursor *Cursor, limit int) *gorm.DB {
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	return query.Order("created_at DESC, id DESC").Limit(NormalizeLimit(limit) + 1)
}

// Trim cuts rows fetched by Keyset down to the page and returns the cursor for the next one.
func Trim[T any](rows []T, limit int, scope string, key func(T) (time.Time, uuid.UUID)) ([]T, *Cursor) {
	size := NormalizeLimit(limit)
	if len(rows) <= size {
		return rows, nil
	}
	rows = rows[:size]
	createdAt, id := key(rows[size-1])
	return rows, &Cursor{Scope: scope, CreatedAt: createdAt, ID: id}
}

// NextToken encodes cursor, or returns "" on the last page.
func NextToken(cursor *Cursor) string {
	if cursor == nil {
		return ""
	}
	return cursor.Encode()
}
