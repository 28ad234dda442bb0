package post

import (
	"errors"
	"testing"
	"time"

	"github.com/harry-2401/reddit/internal/shared/apperr"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 30, 0, 123456000, time.UTC)
	c := CursorAfter(Post{ID: 42, CreatedAt: at})

	got, err := ParseCursor(c.String())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 42 || !got.CreatedAt.Equal(at) || got.CreatedAt.Location() != time.UTC {
		t.Errorf("ParseCursor = %+v, want id 42 at %s UTC", got, at)
	}
}

func TestParseCursor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantNil bool
		wantErr bool
		wantID  uint64
	}{
		{"empty", "", true, false, 0},
		{"blank", "   ", true, false, 0},
		{"timestamp", "2024-03-01T08:30:00Z", false, false, 0},
		{"timestamp with offset", "2024-03-01T10:30:00+02:00", false, false, 0},
		{"garbage", "%%%", false, true, 0},
		{"base64 without separator", "bm9zZXA", false, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCursor(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrInvalid) {
					t.Fatalf("ParseCursor(%q) err = %v, want ErrInvalid", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCursor(%q): %v", tt.in, err)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("ParseCursor(%q) = %v, wantNil %v", tt.in, got, tt.wantNil)
			}
			if got != nil && got.ID != tt.wantID {
				t.Errorf("ID = %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestParseCursorNormalizesToUTC(t *testing.T) {
	got, err := ParseCursor("2024-03-01T10:30:00+02:00")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	if !got.CreatedAt.Equal(want) || got.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %s, want %s", got.CreatedAt, want)
	}
}
