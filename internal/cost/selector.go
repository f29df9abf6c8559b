package cost

import (
	"fmt"
	"sort"
	"strings"

	"github.com/irouter/irouter/internal/errors"
	"github.com/irouter/irouter/pkg/types"
)

// Selector picks an execution backend for a query from a fixed profile set.
type Selector struct {
	profiles []Profile
}

// NewSelector creates a selector over the given profiles. Passing nil uses
// the default profiles.
func NewSelector(profiles []Profile) *Selector {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Selector{profiles: profiles}
}

// Profiles returns the configured profiles.
func (s *Selector) Profiles() []Profile {
	return s.profiles
}

// Select estimates every feature-capable backend and returns the cheapest
// estimate plus all candidate estimates for explain output. Ties break on
// lower overhead, then on profile preference. When no backend supports the
// query's features the query is unsupported.
func (s *Selector) Select(pruning *types.PruningResult, features types.QueryFeatures) (types.CostEstimate, []types.CostEstimate, error) {
	required := features.Required()
	candidates := s.capable(required)
	if len(candidates) == 0 {
		return types.CostEstimate{}, nil, errors.NewUnsupportedQuery(
			fmt.Sprintf("no backend supports features: %s", strings.Join(required, ", ")))
	}

	estimates := make([]types.CostEstimate, len(candidates))
	order := make([]int, len(candidates))
	for i, p := range candidates {
		estimates[i] = Estimate(p, pruning, features)
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := estimates[order[a]], estimates[order[b]]
		if ea.EstimatedTimeSec != eb.EstimatedTimeSec {
			return ea.EstimatedTimeSec < eb.EstimatedTimeSec
		}
		if ea.OverheadCost != eb.OverheadCost {
			return ea.OverheadCost < eb.OverheadCost
		}
		return candidates[order[a]].Preference < candidates[order[b]].Preference
	})

	return estimates[order[0]], estimates, nil
}

// SelectOverride validates a manually chosen backend against the query's
// features and returns its estimate without comparing costs.
func (s *Selector) SelectOverride(backend types.BackendKind, pruning *types.PruningResult, features types.QueryFeatures) (types.CostEstimate, error) {
	for _, p := range s.profiles {
		if p.Backend != backend {
			continue
		}
		for _, feature := range features.Required() {
			if !p.Supports(feature) {
				return types.CostEstimate{}, errors.NewUnsupportedQuery(
					fmt.Sprintf("backend %s does not support %s", backend, feature))
			}
		}
		est := Estimate(p, pruning, features)
		est.Reasoning = "manual override; " + est.Reasoning
		return est, nil
	}
	return types.CostEstimate{}, errors.NewUnsupportedQuery(
		fmt.Sprintf("backend %s is not configured", backend))
}

func (s *Selector) capable(required []string) []Profile {
	var out []Profile
	for _, p := range s.profiles {
		ok := true
		for _, feature := range required {
			if !p.Supports(feature) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}
