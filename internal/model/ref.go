package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const virtualSeparator = "@"

// Ref addresses a task row or an occurrence that may not be stored yet.
type Ref struct {
	id   string
	date Date
}

// RealRef points at a stored task (template or instance).
func RealRef(id string) Ref {
	return Ref{id: id}
}

// VirtualRef points at the occurrence of templateID on date.
func VirtualRef(templateID string, date Date) Ref {
	return Ref{id: templateID, date: date}
}

func (r Ref) IsVirtual() bool { return !r.date.IsZero() }

// ID is the stored id for a real ref and the template id for a virtual one.
func (r Ref) ID() string { return r.id }

// Date is zero for real refs.
func (r Ref) Date() Date { return r.date }

func (r Ref) String() string {
	if r.IsVirtual() {
		return r.id + virtualSeparator + r.date.String()
	}
	return r.id
}

// ParseRef accepts a stored uuid or the "<templateID>@YYYY-MM-DD" form of a virtual occurrence.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	head, tail, virtual := strings.Cut(s, virtualSeparator)
	if _, err := uuid.Parse(head); err != nil {
		return Ref{}, fmt.Errorf("parse ref %q: %w", s, err)
	}
	if !virtual {
		return RealRef(head), nil
	}
	d, err := ParseDate(tail)
	if err != nil {
		return Ref{}, fmt.Errorf("parse ref %q: %w", s, err)
	}
	return VirtualRef(head, d), nil
}
