// Package insets exposes the host device's safe-area insets as a typed
// query. Acquiring the numbers is the host's business; this package only
// validates them and falls back to zero.
package insets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// EnvKey holds insets as "top,right,bottom,left" (CSS shorthand order).
const EnvKey = "ASK_SAFE_AREA"

// ErrUnavailable is returned by a Source that has nothing to report.
var ErrUnavailable = errors.New("safe area insets unavailable")

// Insets are safe-area margins in logical pixels.
type Insets struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// IsZero reports whether every inset is zero.
func (i Insets) IsZero() bool {
	return i == Insets{}
}

func (i Insets) String() string {
	return fmt.Sprintf("top=%g right=%g bottom=%g left=%g", i.Top, i.Right, i.Bottom, i.Left)
}

// Source produces insets.
type Source interface {
	Insets(ctx context.Context) (Insets, error)
}

// Static is a Source that always returns itself.
type Static Insets

func (s Static) Insets(context.Context) (Insets, error) { return Insets(s), nil }

// EnvSource reads insets from the ASK_SAFE_AREA environment variable.
type EnvSource struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
}

func (e EnvSource) Insets(context.Context) (Insets, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw, ok := lookup(EnvKey)
	if !ok || strings.TrimSpace(raw) == "" {
		return Insets{}, ErrUnavailable
	}
	return Parse(raw)
}

// Parse reads "top,right,bottom,left". Like CSS, one value applies to all
// sides and two values are vertical then horizontal.
func Parse(raw string) (Insets, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSuffix(p, "px"), 64)
		if err != nil {
			return Insets{}, fmt.Errorf("invalid inset %q: %w", p, err)
		}
		vals[i] = v
	}
	switch len(vals) {
	case 1:
		return Insets{Top: vals[0], Right: vals[0], Bottom: vals[0], Left: vals[0]}, nil
	case 2:
		return Insets{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}, nil
	case 4:
		return Insets{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}, nil
	default:
		return Insets{}, fmt.Errorf("expected 1, 2 or 4 insets, got %d", len(vals))
	}
}

// Query asks src for insets, logging each step. Any failure yields zero
// insets; negative values are clamped to zero.
func Query(ctx context.Context, src Source, logger *slog.Logger) Insets {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if src == nil {
		logger.Debug("no inset source, using zero insets")
		return Insets{}
	}

	logger.Debug("querying inset source", "source", fmt.Sprintf("%T", src))
	got, err := src.Insets(ctx)
	if err != nil {
		logger.Debug("inset source failed, using zero insets", "error", err)
		return Insets{}
	}
	logger.Debug("inset source answered", "insets", got.String())

	clamped := Insets{
		Top:    nonNegative(got.Top),
		Bottom: nonNegative(got.Bottom),
		Left:   nonNegative(got.Left),
		Right:  nonNegative(got.Right),
	}
	if clamped != got {
		logger.Debug("clamped negative insets", "insets", clamped.String())
	}
	return clamped
}

func nonNegative(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	return v
}
