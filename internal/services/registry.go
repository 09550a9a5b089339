// Package services wires knowd's service instances behind one registry.
//
// All services are explicitly constructed at startup and injected here;
// there are no process-global singletons, which keeps test doubles trivial.
package services

import (
	"github.com/fyrsmithlabs/knowd/internal/cache"
	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	"github.com/fyrsmithlabs/knowd/internal/orchestrator"
	"github.com/fyrsmithlabs/knowd/internal/retrieval"
	"github.com/fyrsmithlabs/knowd/internal/source"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// Registry provides access to all knowd services.
type Registry interface {
	Orchestrator() *orchestrator.Orchestrator
	Ranker() *retrieval.Ranker
	Source() source.Provider
	Embedder() embeddings.Provider
	VectorStore() vectorstore.Store
	Cache() cache.FastCache
}

// Options configures the registry with service instances.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Ranker       *retrieval.Ranker
	Source       source.Provider
	Embedder     embeddings.Provider
	VectorStore  vectorstore.Store
	Cache        cache.FastCache
}

type registry struct {
	orchestrator *orchestrator.Orchestrator
	ranker       *retrieval.Ranker
	source       source.Provider
	embedder     embeddings.Provider
	vectorStore  vectorstore.Store
	cache        cache.FastCache
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		orchestrator: opts.Orchestrator,
		ranker:       opts.Ranker,
		source:       opts.Source,
		embedder:     opts.Embedder,
		vectorStore:  opts.VectorStore,
		cache:        opts.Cache,
	}
}

func (r *registry) Orchestrator() *orchestrator.Orchestrator { return r.orchestrator }
func (r *registry) Ranker() *retrieval.Ranker                { return r.ranker }
func (r *registry) Source() source.Provider                  { return r.source }
func (r *registry) Embedder() embeddings.Provider            { return r.embedder }
func (r *registry) VectorStore() vectorstore.Store           { return r.vectorStore }
func (r *registry) Cache() cache.FastCache                   { return r.cache }
