package adapters

import (
	"strings"

	"github.com/plantmetrics/plant/internal/payment/domain"
)

// Registry maps provider names to adapter factories.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			continue
		}
		r.factories[strings.ToLower(f.Provider())] = f
	}
	return r
}

func (r *Registry) ProviderExists(provider string) bool {
	_, ok := r.factories[strings.ToLower(provider)]
	return ok
}

func (r *Registry) NewAdapter(provider string, config domain.AdapterConfig) (domain.PaymentAdapter, error) {
	factory, ok := r.factories[strings.ToLower(provider)]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewAdapter(config)
}
