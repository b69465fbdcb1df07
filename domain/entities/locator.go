package entities

import (
	"fmt"
	"strings"
)

// LocatorKind is the selector engine a locator is resolved with
type LocatorKind string

const (
	LocatorXPath  LocatorKind = "xpath"
	LocatorCSS    LocatorKind = "css"
	LocatorText   LocatorKind = "text"
	LocatorRole   LocatorKind = "role"
	LocatorTestID LocatorKind = "testid"
)

var locatorKinds = []LocatorKind{LocatorXPath, LocatorCSS, LocatorText, LocatorRole, LocatorTestID}

// Locator identifies one element on the page at one point in time.
// It has no identity beyond its literal expression.
type Locator struct {
	Kind LocatorKind `json:"kind"`
	Expr string      `json:"expr"`
}

// ParseLocator - parses "engine=expression" strings. Unprefixed expressions
// starting with "/" or "html/" are XPath, anything else is CSS.
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	for _, kind := range locatorKinds {
		prefix := string(kind) + "="
		if strings.HasPrefix(raw, prefix) {
			loc := Locator{Kind: kind, Expr: strings.TrimSpace(raw[len(prefix):])}
			return loc, loc.Validate()
		}
	}

	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "html/") || strings.HasPrefix(raw, "(") {
		return Locator{Kind: LocatorXPath, Expr: raw}, nil
	}
	return Locator{Kind: LocatorCSS, Expr: raw}, nil
}

// MustLocator - like ParseLocator but panics, for literals in code and tests
func MustLocator(raw string) Locator {
	loc, err := ParseLocator(raw)
	if err != nil {
		panic(err)
	}
	return loc
}

// Validate - checks that the locator has a known engine and an expression
func (l Locator) Validate() error {
	if l.Expr == "" {
		return fmt.Errorf("locator %q has an empty expression", l.Kind)
	}
	for _, kind := range locatorKinds {
		if l.Kind == kind {
			return nil
		}
	}
	return fmt.Errorf("unknown locator engine %q", l.Kind)
}

// IsZero reports whether the locator is unset
func (l Locator) IsZero() bool {
	return l.Kind == "" && l.Expr == ""
}

// String renders the locator back in "engine=expression" form
func (l Locator) String() string {
	if l.IsZero() {
		return ""
	}
	return string(l.Kind) + "=" + l.Expr
}

// UnmarshalText lets locators be decoded straight from scenario files
func (l *Locator) UnmarshalText(text []byte) error {
	loc, err := ParseLocator(string(text))
	if err != nil {
		return err
	}
	*l = loc
	return nil
}

// MarshalText - encodes the locator in its string form
func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
