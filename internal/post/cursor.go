package post

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harry-2401/reddit/internal/shared/apperr"
)

// Cursor is a position in the feed order (created_at DESC, id DESC). A zero
// ID means "strictly older than CreatedAt".
type Cursor struct {
	CreatedAt time.Time
	ID        uint64
}

func CursorAfter(p Post) Cursor { return Cursor{CreatedAt: p.CreatedAt.UTC(), ID: p.ID} }

func (c Cursor) String() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + strconv.FormatUint(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor accepts the opaque form produced by Cursor.String or a bare
// RFC 3339 timestamp. An empty string means the first page and yields nil.
func ParseCursor(s string) (*Cursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &Cursor{CreatedAt: t.UTC()}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", apperr.ErrInvalid)
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, fmt.Errorf("%w: malformed cursor", apperr.ErrInvalid)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", apperr.ErrInvalid)
	}
	pid, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", apperr.ErrInvalid)
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: pid}, nil
}
