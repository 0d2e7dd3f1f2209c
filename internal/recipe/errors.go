package recipe

import (
	"errors"
	"strings"
)

var (
	// ErrCycleDetected is returned when recipes depend on each other in a loop.
	ErrCycleDetected = errors.New("recipe cycle detected")
	// ErrRecipeNotFound is returned when the requested derived ticker has no recipe.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrNoSources is returned when a recipe lists no source tickers.
	ErrNoSources = errors.New("at least one source ticker is required")
)

// CycleError carries the dependency loop that was found.
// Path starts and ends with the same ticker.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return ErrCycleDetected.Error() + ": " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}
