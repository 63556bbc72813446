package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// LookupKind selects how a [LookupKey] is matched.
type LookupKind int

const (
	ByID LookupKind = iota
	ByCode
)

func (k LookupKind) String() string {
	switch k {
	case ByID:
		return "id"
	case ByCode:
		return "code"
	default:
		return "unknown"
	}
}

// LookupKey addresses a session either by its full id or by its join code.
type LookupKey struct {
	Kind  LookupKind
	Value string
}

// ParseLookupKey classifies raw input: exactly [CodeLength] characters is a code (upper-cased), anything else an id.
func ParseLookupKey(raw string) (LookupKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LookupKey{}, fmt.Errorf("%w: session id or code is required", shared.ErrInvalidInput)
	}

	if utf8.RuneCountInString(raw) == CodeLength {
		return LookupKey{Kind: ByCode, Value: strings.ToUpper(raw)}, nil
	}
	return LookupKey{Kind: ByID, Value: raw}, nil
}

// IDKey builds a key that matches a session id.
func IDKey(id string) LookupKey {
	return LookupKey{Kind: ByID, Value: id}
}

func (k LookupKey) String() string {
	return k.Kind.String() + ":" + k.Value
}
