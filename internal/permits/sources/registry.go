package sources

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/platform/config"
	"permit_ingest_backend/platform/logger"
)

var definitions = map[domain.Source]Definition{}

// register is called from each source file's init.
func register(def Definition) {
	if _, exists := definitions[def.Source]; exists {
		panic(fmt.Sprintf("source %s registered twice", def.Source))
	}
	definitions[def.Source] = def
}

// Lookup returns the definition of a known source.
func Lookup(source domain.Source) (Definition, bool) {
	def, ok := definitions[source]
	return def, ok
}

// Registry holds one adapter per configured source.
type Registry struct {
	adapters map[domain.Source]Adapter
}

// NewRegistry builds adapters for every known source that has a URL configured.
func NewRegistry(cfg config.SourcesConfig, log *logger.Logger) (*Registry, error) {
	timeout := cfg.GetFetchTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	r := &Registry{adapters: make(map[domain.Source]Adapter)}
	for _, source := range domain.KnownSources {
		settings, ok := cfg.GetSourceSettings(string(source))
		if !ok {
			log.Info("source not configured", "source", source)
			continue
		}
		def, ok := Lookup(source)
		if !ok {
			return nil, fmt.Errorf("no definition for source %s", source)
		}
		adapter, err := NewHTTPAdapter(def, settings, cfg.GetIngestPageLimit(), client, log)
		if err != nil {
			return nil, err
		}
		r.adapters[source] = adapter
	}
	return r, nil
}

// Add registers or replaces an adapter.
func (r *Registry) Add(a Adapter) {
	r.adapters[a.Source()] = a
}

// Get returns the adapter for source.
func (r *Registry) Get(source domain.Source) (Adapter, bool) {
	a, ok := r.adapters[source]
	return a, ok
}

// Sources lists configured sources in a stable order.
func (r *Registry) Sources() []domain.Source {
	out := make([]domain.Source, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewStaticRegistry wraps a fixed set of adapters.
func NewStaticRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Source]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Add(a)
	}
	return r
}
