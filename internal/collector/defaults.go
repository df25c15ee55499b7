package collector

import (
	"context"
	"sort"

	"github.com/fr4iser90/FoundryCord-sub001/internal/instrument"
	"github.com/fr4iser90/FoundryCord-sub001/internal/page"
	"github.com/fr4iser90/FoundryCord-sub001/internal/value"
)

// Names of the collectors registered by RegisterDefaults.
const (
	Navigation  = "navigation"
	Viewport    = "viewport"
	Features    = "features"
	DOMSummary  = "domSummary"
	StorageKeys = "storageKeys"
	JSErrors    = "jsErrors"
	ConsoleLogs = "consoleLogs"
)

// RegisterDefaults registers the built-in collectors reading from p and rec.
// Collectors whose source is nil, or whose state p cannot observe, are
// skipped.
func RegisterDefaults(r *Registry, p page.Page, rec *instrument.Recorder) {
	if p != nil {
		if page.Supports(p, page.StateLocation) {
			r.Register(Navigation, navigation(p), WithoutApproval(),
				WithDescription("Reads the current URL, path, query string and hash"))
		}
		if page.Supports(p, page.StateViewport) {
			r.Register(Viewport, viewport(p), WithoutApproval(),
				WithDescription("Reads window dimensions, pixel ratio and orientation"))
		}
		if page.Supports(p, page.StateFeatures) {
			r.Register(Features, features(p), WithoutApproval(),
				WithDescription("Checks which browser storage and worker features are available"))
		}
		if page.Supports(p, page.StateDOMSummary) {
			r.Register(DOMSummary, domSummary(p),
				WithDescription("Counts page elements by tag and reads the title and body classes"))
		}
		if page.Supports(p, page.StateStorageKeys) {
			r.Register(StorageKeys, storageKeys(p),
				WithDescription("Lists local and session storage key names (not values)"))
		}
	}
	if rec != nil {
		r.Register(JSErrors, jsErrors(rec),
			WithDescription("Reports recently captured uncaught errors"))
		r.Register(ConsoleLogs, consoleLogs(rec),
			WithDescription("Reports recent console output"))
	}
}

func navigation(p page.Page) Func {
	return func(ctx context.Context, _ value.Value) (value.Value, error) {
		loc, err := p.Location(ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.Map(
			value.F("url", value.String(loc.URL)),
			value.F("path", value.String(loc.Path)),
			value.F("query", value.String(loc.Query)),
			value.F("hash", value.String(loc.Hash)),
		), nil
	}
}

func viewport(p page.Page) Func {
	return func(ctx context.Context, _ value.Value) (value.Value, error) {
		vp, err := p.Viewport(ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.Map(
			value.F("width", value.Int(vp.Width)),
			value.F("height", value.Int(vp.Height)),
			value.F("pixelRatio", value.Number(vp.PixelRatio)),
			value.F("orientation", value.String(vp.Orientation)),
		), nil
	}
}

func features(p page.Page) Func {
	return func(ctx context.Context, _ value.Value) (value.Value, error) {
		f, err := p.Features(ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.Map(
			value.F("localStorage", value.Bool(f.LocalStorage)),
			value.F("sessionStorage", value.Bool(f.SessionStorage)),
			value.F("webSockets", value.Bool(f.WebSockets)),
			value.F("webWorkers", value.Bool(f.WebWorkers)),
			value.F("geolocation", value.Bool(f.Geolocation)),
			value.F("serviceWorker", value.Bool(f.ServiceWorker)),
		), nil
	}
}

func domSummary(p page.Page) Func {
	return func(ctx context.Context, _ value.Value) (value.Value, error) {
		d, err := p.DOMSummary(ctx)
		if err != nil {
			return value.Null(), err
		}
		tags := make([]string, 0, len(d.TagCounts))
		for tag := range d.TagCounts {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		counts := make([]value.Field, len(tags))
		for i, tag := range tags {
			counts[i] = value.F(tag, value.Int(d.TagCounts[tag]))
		}
		return value.Map(
			value.F("tagCounts", value.Map(counts...)),
			value.F("totalElements", value.Int(d.TotalElements)),
			value.F("title", value.String(d.Title)),
			value.F("bodyClasses", value.Strings(d.BodyClasses)),
		), nil
	}
}

func storageKeys(p page.Page) Func {
	return func(ctx context.Context, _ value.Value) (value.Value, error) {
		s, err := p.StorageKeys(ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.Map(
			value.F("localStorage", value.Strings(s.Local)),
			value.F("sessionStorage", value.Strings(s.Session)),
		), nil
	}
}

func jsErrors(rec *instrument.Recorder) Func {
	return func(context.Context, value.Value) (value.Value, error) {
		errs := rec.Errors()
		items := make([]value.Value, len(errs))
		for i, e := range errs {
			items[i] = e.Value()
		}
		return value.List(items...), nil
	}
}

func consoleLogs(rec *instrument.Recorder) Func {
	return func(context.Context, value.Value) (value.Value, error) {
		entries := rec.ConsoleEntries()
		items := make([]value.Value, len(entries))
		for i, e := range entries {
			items[i] = e.Value()
		}
		return value.List(items...), nil
	}
}
