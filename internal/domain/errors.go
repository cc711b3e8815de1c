package domain

import "errors"

// Error taxonomy shared by the training, serving and simulation paths.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w").
var (
	// ErrNotFound marks a missing trained artifact. Inference must never
	// fall back to an untrained policy when this is returned.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientData marks history shorter than the minimum lookback.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrConstruction marks a component built from inconsistent inputs,
	// e.g. price/feature/sentiment sequences of different lengths.
	ErrConstruction = errors.New("invalid construction")

	// ErrInvalidRequest marks a malformed caller request (bad symbol,
	// action code out of range, state of the wrong width).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEpisodeDone is returned by Environment.Step after termination.
	ErrEpisodeDone = errors.New("episode already terminated")

	// ErrDiverged is returned by the training driver when rewards or losses
	// stop being finite.
	ErrDiverged = errors.New("training diverged")
)
