// Package form is the persistence collaborator: it serializes named
// products to technology-specific containers. Only output nodes may call
// into it; the graph builder never does.
package form

import (
	"errors"

	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/store"
)

// ErrUnconfiguredProduct reports a write or read for a label with no
// persistence configuration. It is deliberately distinct from data errors so
// callers can tell "forgot to configure" apart from corruption.
var ErrUnconfiguredProduct = errors.New("product has no persistence configuration")

// ErrTechnologyMismatch reports a container whose configured technology is
// not served by this backend.
var ErrTechnologyMismatch = errors.New("persistence technology mismatch")

// ErrNoSuchRecord reports a read for a scope that was never committed.
var ErrNoSuchRecord = errors.New("no record for scope")

// Interface is the contract consumed by output nodes.
type Interface interface {
	// Configure installs the output item list and technology settings.
	Configure(items []config.PersistItem, settings map[string]string) error
	// CreateContainers prepares the containers for one creator's labelled
	// products, given their declared type names.
	CreateContainers(creator string, types map[string]string) error
	// RegisterWrite stages one product value for the creator's next commit.
	RegisterWrite(creator, label string, value any, typeName string) error
	// Commit flushes the creator's staged writes under the given scope id.
	Commit(creator string, id *store.LevelID) error
	// Read returns a previously committed value and its type name.
	Read(creator, label string, id *store.LevelID) (any, string, error)
}
