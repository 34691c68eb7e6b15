package rag

import "strings"

// Route is a coarse question category used to adjust prompting and reranking.
type Route string

const (
	RouteDefault    Route = "impact"
	RouteDefinition Route = "definition"
	RouteStatistic  Route = "statistic"
)

var statisticMarkers = []string{"statistic", "percentage", "how many", "number", "ratio"}

// Router classifies questions into coarse categories.
type Router struct{}

func NewRouter() *Router {
	return &Router{}
}

// Classify picks a route from surface features of the question. Unmatched
// questions fall through to the default route.
func (r *Router) Classify(question string) Route {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return RouteDefault
	}
	for _, marker := range statisticMarkers {
		if strings.Contains(q, marker) {
			return RouteStatistic
		}
	}
	if strings.HasPrefix(q, "what is") || strings.Contains(q, "define") {
		return RouteDefinition
	}
	return RouteDefault
}
