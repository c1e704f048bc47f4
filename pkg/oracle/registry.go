// Package oracle implements the oracle registry. Each oracle pays a
// registration fee and receives a fixed set of index labels; only requests
// tagged with one of those labels may be answered by that oracle.
package oracle

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	ErrAlreadyRegistered = errors.New("oracle already registered")
	ErrNotRegistered     = errors.New("oracle not registered")
	ErrInsufficientFee   = errors.New("registration fee below threshold")
)

// LabelCount is the number of index labels assigned to every oracle.
const LabelCount = 3

// Oracle is a registered reporter. Immutable after registration.
type Oracle struct {
	ID     string          `json:"id"`
	Labels [LabelCount]int `json:"labels"`
}

// Registry assigns index labels at registration time and answers label
// membership queries. Append-only for the process lifetime.
type Registry struct {
	mu         sync.RWMutex
	oracles    map[string]Oracle
	labelSpace int
	feeMinor   int64
}

// NewRegistry creates a registry drawing labels from [0, labelSpace) and
// requiring feeMinor minor units to register.
func NewRegistry(labelSpace int, feeMinor int64) (*Registry, error) {
	if labelSpace < LabelCount {
		return nil, fmt.Errorf("label space %d cannot seat %d distinct labels", labelSpace, LabelCount)
	}
	return &Registry{
		oracles:    make(map[string]Oracle),
		labelSpace: labelSpace,
		feeMinor:   feeMinor,
	}, nil
}

// Register admits a new oracle and assigns its labels. The triple is drawn
// uniformly without replacement; collisions across different oracles are
// expected and are what makes quorum formation possible.
func (r *Registry) Register(oracleID string, feeMinor int64) ([LabelCount]int, error) {
	var none [LabelCount]int
	if feeMinor < r.feeMinor {
		return none, fmt.Errorf("%w: got %d, need %d", ErrInsufficientFee, feeMinor, r.feeMinor)
	}

	labels, err := drawLabels(r.labelSpace)
	if err != nil {
		return none, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.oracles[oracleID]; ok {
		return none, fmt.Errorf("%w: %s", ErrAlreadyRegistered, oracleID)
	}
	r.oracles[oracleID] = Oracle{ID: oracleID, Labels: labels}
	return labels, nil
}

// IndexesOf returns the labels assigned to oracleID.
func (r *Registry) IndexesOf(oracleID string) ([LabelCount]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[oracleID]
	if !ok {
		return [LabelCount]int{}, fmt.Errorf("%w: %s", ErrNotRegistered, oracleID)
	}
	return o.Labels, nil
}

// HasLabel reports whether oracleID is registered and holds label.
func (r *Registry) HasLabel(oracleID string, label int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[oracleID]
	if !ok {
		return false
	}
	for _, l := range o.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Count returns the number of registered oracles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.oracles)
}

// LabelSpace returns the exclusive upper bound of the label space.
func (r *Registry) LabelSpace() int {
	return r.labelSpace
}

// drawLabels picks LabelCount distinct labels from [0, space) uniformly.
func drawLabels(space int) ([LabelCount]int, error) {
	var labels [LabelCount]int
	pool := make([]int, space)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < LabelCount; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
		if err != nil {
			return labels, fmt.Errorf("label draw: %w", err)
		}
		j := int(n.Int64())
		labels[i] = pool[j]
		pool[j] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return labels, nil
}
