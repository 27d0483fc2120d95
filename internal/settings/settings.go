// Package settings layers built-in, global and site settings into one
// key-value view for actions.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dario.cat/mergo"

	"translation-orchestrator/internal/domain"
)

// MaxMergeDepth bounds how deep nested maps are merged. Below that depth the
// overriding value replaces the original as a whole.
const MaxMergeDepth = 10

type Settings map[string]any

// Merge deep-merges layers; later layers win. Layers are copied first, so
// the inputs are never modified.
func Merge(layers ...map[string]any) Settings {
	out := Settings{}
	for _, layer := range layers {
		// Both sides are Settings, so mergo cannot report a type mismatch.
		_ = mergo.Merge(&out, Settings(sealBelow(layer, 0)), mergo.WithOverride)
	}
	return Settings(unseal(out))
}

// sealed hides a map from mergo; it has no exported fields, so it is
// replaced as a whole instead of merged.
type sealed struct {
	m map[string]any
}

// sealBelow copies m and seals every map nested at MaxMergeDepth-1 or deeper.
func sealBelow(m map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		nested, ok := asMap(value)
		switch {
		case !ok:
			out[key] = value
		case depth < MaxMergeDepth-1:
			out[key] = sealBelow(nested, depth+1)
		default:
			out[key] = sealed{m: deepCopy(nested)}
		}
	}
	return out
}

func unseal(m map[string]any) map[string]any {
	for key, value := range m {
		switch v := value.(type) {
		case sealed:
			m[key] = v.m
		case map[string]any:
			unseal(v)
		}
	}
	return m
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if nested, ok := asMap(value); ok {
			out[key] = deepCopy(nested)
			continue
		}
		out[key] = value
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Settings:
		return m, true
	default:
		return nil, false
	}
}

// Get walks nested maps along path.
func (s Settings) Get(path ...string) (any, bool) {
	var current any = map[string]any(s)
	for _, key := range path {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (s Settings) Str(key string, fallback string) string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return fallback
		}
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Int returns fallback when the value is missing or not an integer.
func (s Settings) Int(key string, fallback int) int {
	v, ok := s.Get(key)
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		if t > math.MaxInt32 || t < math.MinInt32 {
			return fallback
		}
		return int(t)
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt32 || t < math.MinInt32 {
			return fallback
		}
		return int(t)
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			return fallback
		}
		return n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
}

// RetryDelay never fails; ok is false when the key is
// missing or unusable.
func (s Settings) RetryDelay(key string) (domain.RetryDelay, bool) {
	v, ok := s.Get(key)
	if !ok {
		return domain.RetryDelay{}, false
	}
	return domain.RetryDelayFromAny(v)
}

// Sub returns the nested settings under key, or an empty map.
func (s Settings) Sub(key string) Settings {
	v, ok := s.Get(key)
	if !ok {
		return Settings{}
	}
	m, ok := asMap(v)
	if !ok {
		return Settings{}
	}
	return Settings(m)
}

// Source supplies the stored settings layers.
type Source interface {
	GlobalSettings(ctx context.Context) (map[string]any, error)
	SiteSettings(ctx context.Context, site string) (map[string]any, error)
}

// Loader resolves settings for a site.
type Loader interface {
	Load(ctx context.Context, site string) (Settings, error)
}

// LayeredLoader merges static < global < site.
type LayeredLoader struct {
	Static map[string]any
	Source Source
}

func NewLayeredLoader(static map[string]any, source Source) *LayeredLoader {
	return &LayeredLoader{Static: static, Source: source}
}

// Load reports a repository outage when the stored layers cannot be read.
func (l *LayeredLoader) Load(ctx context.Context, site string) (Settings, error) {
	if l.Source == nil {
		return Merge(l.Static), nil
	}
	global, err := l.Source.GlobalSettings(ctx)
	if err != nil {
		return nil, domain.RepositoryUnavailable(err, "load global settings")
	}
	var siteLayer map[string]any
	if site != "" {
		siteLayer, err = l.Source.SiteSettings(ctx, site)
		if err != nil {
			return nil, domain.RepositoryUnavailable(err, "load settings for site %s", site)
		}
	}
	return Merge(l.Static, global, siteLayer), nil
}

// StaticLoader serves fixed settings, for tests and the CLI.
type StaticLoader Settings

func (s StaticLoader) Load(context.Context, string) (Settings, error) {
	return Merge(map[string]any(s)), nil
}
