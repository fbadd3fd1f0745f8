package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseRef(t *testing.T) {
	id := uuid.NewString()

	stored, err := ParseRef(id)
	if err != nil {
		t.Fatalf("parse real ref: %v", err)
	}
	if stored.IsVirtual() || stored.ID() != id || stored.String() != id {
		t.Fatalf("expected real ref %s, got %+v", id, stored)
	}

	day := NewDate(2024, time.January, 8)
	virtual, err := ParseRef(VirtualRef(id, day).String())
	if err != nil {
		t.Fatalf("parse virtual ref: %v", err)
	}
	if !virtual.IsVirtual() || virtual.ID() != id || virtual.Date() != day {
		t.Fatalf("expected virtual ref for %s on %s, got %+v", id, day, virtual)
	}

	for _, bad := range []string{"", "42", id + "@", id + "@2024-13-01", "nope@2024-01-01"} {
		if _, err := ParseRef(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
