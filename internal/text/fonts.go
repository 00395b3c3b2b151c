// Package text turns strings and glyph IDs into outline paths using the
// embedded Go font family.
package text

import (
	"fmt"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/gofont/gosmallcapsitalic"
	"golang.org/x/image/font/sfnt"
)

// Face codes as sent by hosts.
const (
	FacePlain      = 1
	FaceBold       = 2
	FaceItalic     = 3
	FaceBoldItalic = 4
	FaceSymbol     = 5
)

// Family is one of the embedded font families.
type Family uint8

const (
	FamilySans Family = iota
	FamilyMono
	FamilySmallCaps
)

func (f Family) String() string {
	switch f {
	case FamilyMono:
		return "mono"
	case FamilySmallCaps:
		return "smallcaps"
	default:
		return "sans"
	}
}

// FontRef identifies a resolved font.
type FontRef struct {
	Family Family
	Bold   bool
	Italic bool
}

// Resolve maps a host family name and face code onto an embedded font.
// Unknown families fall back to sans; the symbol face is drawn plain.
func Resolve(family string, face int) FontRef {
	ref := FontRef{Family: familyFromName(family)}
	switch face {
	case FaceBold:
		ref.Bold = true
	case FaceItalic:
		ref.Italic = true
	case FaceBoldItalic:
		ref.Bold, ref.Italic = true, true
	}
	if ref.Family == FamilySmallCaps {
		ref.Bold = false
	}
	return ref
}

func familyFromName(name string) Family {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mono", "monospace", "courier", "go mono":
		return FamilyMono
	case "smallcaps", "go smallcaps":
		return FamilySmallCaps
	default:
		return FamilySans
	}
}

func (r FontRef) ttf() []byte {
	switch r.Family {
	case FamilyMono:
		switch {
		case r.Bold && r.Italic:
			return gomonobolditalic.TTF
		case r.Bold:
			return gomonobold.TTF
		case r.Italic:
			return gomonoitalic.TTF
		}
		return gomono.TTF
	case FamilySmallCaps:
		if r.Italic {
			return gosmallcapsitalic.TTF
		}
		return gosmallcaps.TTF
	default:
		switch {
		case r.Bold && r.Italic:
			return gobolditalic.TTF
		case r.Bold:
			return gobold.TTF
		case r.Italic:
			return goitalic.TTF
		}
		return goregular.TTF
	}
}

func parseFont(ref FontRef) (*sfnt.Font, error) {
	f, err := sfnt.Parse(ref.ttf())
	if err != nil {
		return nil, fmt.Errorf("parse %s font: %w", ref.Family, err)
	}
	return f, nil
}
