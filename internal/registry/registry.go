package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"TrustPulse/internal/domain/models"
)

// Configuration errors are fatal at startup; the engine refuses to run with
// an incomplete registry rather than silently dropping data later.
var (
	ErrUnregisteredSignal = errors.New("unregistered signal key")
	ErrInvalidCalibration = errors.New("invalid calibration")
	ErrDuplicateSignal    = errors.New("duplicate signal key")
)

// Registry holds the immutable set of registered signals. It is constructed
// explicitly and passed around; engine instances never share one implicitly.
type Registry struct {
	mu      sync.RWMutex
	signals map[string]models.Signal
}

func New() *Registry {
	return &Registry{signals: make(map[string]models.Signal)}
}

// NewFromSignals builds a registry from configuration, failing fast on the
// first invalid entry.
func NewFromSignals(signals []models.Signal) (*Registry, error) {
	r := New()
	for i := range signals {
		if err := r.Register(signals[i]); err != nil {
			return nil, fmt.Errorf("signal %q: %w", signals[i].Key, err)
		}
	}
	return r, nil
}

// Register validates and adds a signal. Signals are immutable once registered.
func (r *Registry) Register(s models.Signal) error {
	if s.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidCalibration)
	}
	if err := validateCalibration(s.Calibration); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.signals[s.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSignal, s.Key)
	}
	r.signals[s.Key] = s
	return nil
}

// Lookup returns the signal for key or ErrUnregisteredSignal.
func (r *Registry) Lookup(key string) (models.Signal, error) {
	r.mu.RLock()
	s, ok := r.signals[key]
	r.mu.RUnlock()
	if !ok {
		return models.Signal{}, fmt.Errorf("%w: %s", ErrUnregisteredSignal, key)
	}
	return s, nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	_, ok := r.signals[key]
	r.mu.RUnlock()
	return ok
}

// Keys returns all registered keys in stable order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.signals))
	for k := range r.signals {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// All returns all registered signals keyed by signal key.
func (r *Registry) All() map[string]models.Signal {
	r.mu.RLock()
	out := make(map[string]models.Signal, len(r.signals))
	for k, v := range r.signals {
		out[k] = v
	}
	r.mu.RUnlock()
	return out
}

func validateCalibration(c models.Calibration) error {
	switch c.Kind {
	case models.CalibrationLinear:
		if c.Max <= c.Min {
			return fmt.Errorf("%w: linear bounds max <= min", ErrInvalidCalibration)
		}
	case models.CalibrationZScore:
		if c.Std <= 0 {
			return fmt.Errorf("%w: zscore std must be positive", ErrInvalidCalibration)
		}
	case models.CalibrationCategorical:
		if len(c.Table) == 0 {
			return fmt.Errorf("%w: empty bucket table", ErrInvalidCalibration)
		}
		for i := 1; i < len(c.Table); i++ {
			if c.Table[i].Upper <= c.Table[i-1].Upper {
				return fmt.Errorf("%w: bucket table not ascending", ErrInvalidCalibration)
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCalibration, c.Kind)
	}
	return nil
}
