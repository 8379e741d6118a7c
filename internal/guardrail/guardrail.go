// Package guardrail decides whether a query is in scope by comparing its
// embedding with the reference phrases of a fixed set of routes.
package guardrail

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"streamflix-rag/internal/embedding"
	"streamflix-rag/internal/metrics"
	"streamflix-rag/pkg/logging/logging"
)

var ErrNoRoutes = errors.New("guardrail: at least one route is required")

type Route struct {
	Name       string   `yaml:"name" validate:"required"`
	References []string `yaml:"references" validate:"required,min=1,dive,required"`
	// DistanceThreshold is inclusive, on the cosine distance scale [0, 2].
	DistanceThreshold float64 `yaml:"distance_threshold" validate:"gt=0,lte=2"`
}

func (r Route) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("guardrail: route name is required")
	}
	if len(r.References) == 0 {
		return fmt.Errorf("guardrail: route %q has no reference phrases", r.Name)
	}
	if r.DistanceThreshold <= 0 || r.DistanceThreshold > 2 {
		return fmt.Errorf("guardrail: route %q threshold %v outside (0, 2]", r.Name, r.DistanceThreshold)
	}
	return nil
}

// RouteMatch is the classification result. When Matched is false the query
// is out of scope, Name is empty and Distance is the closest distance seen.
type RouteMatch struct {
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance"`
	Matched  bool    `json:"matched"`
}

type compiledRoute struct {
	Route
	vectors [][]float32
}

// Guardrail is immutable after New and safe for concurrent use.
type Guardrail struct {
	embedder embedding.Embedder
	routes   []compiledRoute
	logger   *zap.Logger
}

// New embeds every reference phrase once.
func New(ctx context.Context, embedder embedding.Embedder, routes []Route, logger *zap.Logger) (*Guardrail, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("guardrail")

	compiled := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		vecs, err := embedder.EmbedMany(ctx, r.References)
		if err != nil {
			return nil, fmt.Errorf("guardrail: embed references of %q: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRoute{Route: r, vectors: vecs})
	}

	total := 0
	for _, r := range compiled {
		total += len(r.vectors)
	}
	logger.Info("guardrail ready",
		zap.Int("routes", len(compiled)),
		zap.Int("references", total),
		zap.String("embedding_model", embedder.Model()),
	)

	return &Guardrail{
		embedder: embedder,
		routes:   compiled,
		logger:   logger,
	}, nil
}

// Classify returns the route owning the closest reference phrase when that
// distance is within the route's threshold. Embedding errors are returned
// so callers fail closed.
func (g *Guardrail) Classify(ctx context.Context, query string) (RouteMatch, error) {
	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return RouteMatch{}, fmt.Errorf("guardrail: embed query: %w", err)
	}

	best := math.Inf(1)
	var bestRoute *compiledRoute
	for i := range g.routes {
		r := &g.routes[i]
		for _, ref := range r.vectors {
			if d := embedding.CosineDistance(vec, ref); d < best {
				best = d
				bestRoute = r
			}
		}
	}

	match := RouteMatch{Distance: best}
	if bestRoute != nil && best <= bestRoute.DistanceThreshold {
		match.Name = bestRoute.Name
		match.Matched = true
	}

	outcome := "blocked"
	if match.Matched {
		outcome = "allowed"
	}
	metrics.GuardrailDecisionsTotal.WithLabelValues(outcome).Inc()

	logging.FromContextOr(ctx, g.logger).Info("guardrail_decision",
		zap.String("outcome", outcome),
		zap.String("route", match.Name),
		zap.Float64("distance", match.Distance),
	)
	return match, nil
}

// Routes returns the configured routes without their embeddings.
func (g *Guardrail) Routes() []Route {
	out := make([]Route, len(g.routes))
	for i, r := range g.routes {
		out[i] = r.Route
	}
	return out
}
