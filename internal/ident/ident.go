// Package ident maps internal integer row ids to per-namespace obfuscated
// strings. Each entity namespace gets its own codec so encoded ids from one
// namespace do not decode under another. Encoding is obfuscation only; every
// decoded id must still pass ownership verification before use.
package ident

import (
	"fmt"

	"github.com/sqids/sqids-go"
)

// Namespace identifies one entity id space.
type Namespace string

const (
	NSProjectTemplate  Namespace = "projectTemplate"
	NSEventTemplate    Namespace = "eventTemplate"
	NSReminderTemplate Namespace = "reminderTemplate"
	NSProject          Namespace = "project"
	NSEvent            Namespace = "event"
	NSReminder         Namespace = "reminder"
	NSTag              Namespace = "tag"
)

// Namespaces lists every namespace, in registry construction order.
var Namespaces = []Namespace{
	NSProjectTemplate,
	NSEventTemplate,
	NSReminderTemplate,
	NSProject,
	NSEvent,
	NSReminder,
	NSTag,
}

// MalformedIDError reports a string that does not decode canonically under
// the requested namespace.
type MalformedIDError struct {
	Namespace Namespace
	Value     string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed %s id %q", e.Namespace, e.Value)
}

const (
	baseAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	minLength    = 16
)

// Registry holds one codec per namespace. It is immutable after New and
// safe for concurrent use.
type Registry struct {
	codecs map[Namespace]*sqids.Sqids
}

// New builds the codec registry. Each namespace uses a distinct rotation of
// the base alphabet, which seeds sqids' internal shuffle differently per
// namespace.
func New() (*Registry, error) {
	codecs := make(map[Namespace]*sqids.Sqids, len(Namespaces))
	for i, ns := range Namespaces {
		rot := ((i + 1) * 11) % len(baseAlphabet)
		alphabet := baseAlphabet[rot:] + baseAlphabet[:rot]

		s, err := sqids.New(sqids.Options{
			Alphabet:  alphabet,
			MinLength: minLength,
		})
		if err != nil {
			return nil, fmt.Errorf("building %s codec: %w", ns, err)
		}
		codecs[ns] = s
	}
	return &Registry{codecs: codecs}, nil
}

// Encode maps a non-negative row id to its public string form.
func (r *Registry) Encode(ns Namespace, id int64) (string, error) {
	codec, ok := r.codecs[ns]
	if !ok {
		return "", fmt.Errorf("unknown namespace %q", ns)
	}
	if id < 0 {
		return "", fmt.Errorf("id must be non-negative, got %d", id)
	}
	encoded, err := codec.Encode([]uint64{uint64(id)})
	if err != nil {
		return "", fmt.Errorf("encoding %s id %d: %w", ns, id, err)
	}
	return encoded, nil
}

// MustEncode is Encode for ids already known to be valid rows; it panics on
// registry misuse, which is a programming error.
func (r *Registry) MustEncode(ns Namespace, id int64) string {
	encoded, err := r.Encode(ns, id)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Decode maps a public string back to a row id. The value must decode to
// exactly one number and re-encode to the identical string (sqids accepts
// some non-canonical inputs; the round-trip check rejects them, including
// strings minted under a different namespace).
func (r *Registry) Decode(ns Namespace, value string) (int64, error) {
	codec, ok := r.codecs[ns]
	if !ok {
		return 0, fmt.Errorf("unknown namespace %q", ns)
	}

	numbers := codec.Decode(value)
	if len(numbers) != 1 {
		return 0, &MalformedIDError{Namespace: ns, Value: value}
	}

	canonical, err := codec.Encode(numbers)
	if err != nil || canonical != value {
		return 0, &MalformedIDError{Namespace: ns, Value: value}
	}

	return int64(numbers[0]), nil
}
