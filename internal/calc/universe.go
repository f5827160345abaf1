package calc

import (
	"context"
	"fmt"
	"strings"

	"nse-metrics/internal/model"
)

// ResolveUniverse returns explicit as given (trimmed, blanks and duplicates
// dropped, order kept) or, when it is empty, every active security.
func ResolveUniverse(ctx context.Context, src model.SecurityReader, explicit []string) ([]string, error) {
	seen := make(map[string]bool, len(explicit))
	out := make([]string, 0, len(explicit))
	for _, s := range explicit {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) > 0 {
		return out, nil
	}

	active, err := src.ActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active securities: %w", err)
	}
	if len(active) == 0 {
		return nil, ErrUniverseEmpty
	}
	return active, nil
}
