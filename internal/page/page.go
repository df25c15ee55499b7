// Package page abstracts the host document that default collectors read.
package page

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Location is the current navigation state.
type Location struct {
	URL   string `json:"url"`
	Path  string `json:"path"`
	Query string `json:"query"`
	Hash  string `json:"hash"`
}

// Viewport describes the visible window.
type Viewport struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	PixelRatio  float64 `json:"pixelRatio"`
	Orientation string  `json:"orientation"`
}

// Features lists the presence of optional platform capabilities.
type Features struct {
	LocalStorage   bool `json:"localStorage"`
	SessionStorage bool `json:"sessionStorage"`
	WebSockets     bool `json:"webSockets"`
	WebWorkers     bool `json:"webWorkers"`
	Geolocation    bool `json:"geolocation"`
	ServiceWorker  bool `json:"serviceWorker"`
}

// DOMSummary counts document elements.
type DOMSummary struct {
	TagCounts     map[string]int `json:"tagCounts"`
	TotalElements int            `json:"totalElements"`
	Title         string         `json:"title"`
	BodyClasses   []string       `json:"bodyClasses"`
}

// StorageKeys holds storage key names. Values are never read.
type StorageKeys struct {
	Local   []string `json:"localStorage"`
	Session []string `json:"sessionStorage"`
}

// Page is a source of host state.
type Page interface {
	Location(ctx context.Context) (Location, error)
	Viewport(ctx context.Context) (Viewport, error)
	Features(ctx context.Context) (Features, error)
	DOMSummary(ctx context.Context) (DOMSummary, error)
	StorageKeys(ctx context.Context) (StorageKeys, error)
}

// State names one kind of host state a Page can report.
type State string

const (
	StateLocation    State = "location"
	StateViewport    State = "viewport"
	StateFeatures    State = "features"
	StateDOMSummary  State = "domSummary"
	StateStorageKeys State = "storageKeys"
)

// ErrUnavailable is returned for state a Page cannot observe.
var ErrUnavailable = errors.New("page: state not available")

// Supports reports whether p can observe st. Pages that do not say
// otherwise are assumed to observe everything.
func Supports(p Page, st State) bool {
	if s, ok := p.(interface{ Supports(State) bool }); ok {
		return s.Supports(st)
	}
	return true
}

// Static is a Page with fixed contents. Nil fields are unknown and their
// methods return ErrUnavailable.
type Static struct {
	Loc     Location
	View    *Viewport
	Feat    *Features
	DOM     *DOMSummary
	Storage *StorageKeys
}

// StaticFromURL returns a Static page that knows only its location.
func StaticFromURL(raw string) (*Static, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	return &Static{Loc: loc}, nil
}

// ParseLocation splits raw into the fields of a Location.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid page url %q: %w", raw, err)
	}
	loc := Location{URL: raw, Path: u.Path}
	if u.RawQuery != "" {
		loc.Query = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		loc.Hash = "#" + u.Fragment
	}
	if loc.Path == "" {
		loc.Path = "/"
	}
	return loc, nil
}

// Supports reports whether the field backing st is set.
func (s *Static) Supports(st State) bool {
	switch st {
	case StateLocation:
		return true
	case StateViewport:
		return s.View != nil
	case StateFeatures:
		return s.Feat != nil
	case StateDOMSummary:
		return s.DOM != nil
	case StateStorageKeys:
		return s.Storage != nil
	}
	return false
}

func (s *Static) Location(context.Context) (Location, error) { return s.Loc, nil }

func (s *Static) Viewport(context.Context) (Viewport, error) {
	if s.View == nil {
		return Viewport{}, ErrUnavailable
	}
	return *s.View, nil
}

func (s *Static) Features(context.Context) (Features, error) {
	if s.Feat == nil {
		return Features{}, ErrUnavailable
	}
	return *s.Feat, nil
}

func (s *Static) DOMSummary(context.Context) (DOMSummary, error) {
	if s.DOM == nil {
		return DOMSummary{}, ErrUnavailable
	}
	return *s.DOM, nil
}

func (s *Static) StorageKeys(context.Context) (StorageKeys, error) {
	if s.Storage == nil {
		return StorageKeys{}, ErrUnavailable
	}
	return *s.Storage, nil
}
