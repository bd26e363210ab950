package form

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/scopeflow/internal/config"
	"github.com/vk/scopeflow/internal/store"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"
)

// TechnologyMsgpack is the technology tag served by MsgpackStore.
const TechnologyMsgpack = "msgpack"

type record struct {
	ty  cty.Type
	raw []byte
}

type pendingWrite struct {
	label string
	value any
}

// MsgpackStore is the reference persistence technology: products are
// serialized as msgpack and appended to per-container files, with an
// in-process index serving reads back. It stands in for heavier container
// technologies behind the same Interface.
type MsgpackStore struct {
	mu       sync.Mutex
	dir      string
	items    map[string]config.PersistItem // label -> item
	pending  map[string][]pendingWrite     // creator -> staged writes
	records  map[string]record             // creator|label|scope -> committed value
	prepared map[string]bool               // creator -> containers created
}

// NewMsgpackStore returns an unconfigured store.
func NewMsgpackStore() *MsgpackStore {
	return &MsgpackStore{
		items:    make(map[string]config.PersistItem),
		pending:  make(map[string][]pendingWrite),
		records:  make(map[string]record),
		prepared: make(map[string]bool),
	}
}

// Configure implements Interface. The only recognized setting is
// "directory", where container files are written; empty keeps everything
// in process.
func (m *MsgpackStore) Configure(items []config.PersistItem, settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.items[it.Label] = it
	}
	m.dir = settings["directory"]
	if m.dir != "" {
		if err := os.MkdirAll(m.dir, 0o755); err != nil {
			return fmt.Errorf("creating persistence directory: %w", err)
		}
	}
	return nil
}

// CreateContainers implements Interface. Technology mismatches surface here,
// before any write is attempted.
func (m *MsgpackStore) CreateContainers(creator string, types map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for label := range types {
		it, ok := m.items[label]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnconfiguredProduct, label)
		}
		if it.Technology != TechnologyMsgpack {
			return fmt.Errorf("%w: container %q wants %q", ErrTechnologyMismatch, it.Container, it.Technology)
		}
	}
	m.prepared[creator] = true
	return nil
}

// RegisterWrite implements Interface.
func (m *MsgpackStore) RegisterWrite(creator, label string, value any, typeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[label]; !ok {
		return fmt.Errorf("%w: %q (type %s)", ErrUnconfiguredProduct, label, typeName)
	}
	m.pending[creator] = append(m.pending[creator], pendingWrite{label: label, value: value})
	return nil
}

// Commit implements Interface: it serializes the creator's staged writes
// under the scope id and clears the staging area.
func (m *MsgpackStore) Commit(creator string, id *store.LevelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	writes := m.pending[creator]
	delete(m.pending, creator)
	for _, w := range writes {
		ty, err := gocty.ImpliedType(w.value)
		if err != nil {
			return fmt.Errorf("product %q: %w", w.label, err)
		}
		cv, err := gocty.ToCtyValue(w.value, ty)
		if err != nil {
			return fmt.Errorf("product %q: %w", w.label, err)
		}
		raw, err := ctymsgpack.Marshal(cv, ty)
		if err != nil {
			return fmt.Errorf("product %q: %w", w.label, err)
		}
		m.records[recordKey(creator, w.label, id)] = record{ty: ty, raw: raw}
		if m.dir != "" {
			if err := m.writeFile(creator, w.label, id, raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// Read implements Interface, deserializing from the in-process index.
func (m *MsgpackStore) Read(creator, label string, id *store.LevelID) (any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[label]; !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnconfiguredProduct, label)
	}
	rec, ok := m.records[recordKey(creator, label, id)]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s/%s @ %s", ErrNoSuchRecord, creator, label, id)
	}
	cv, err := ctymsgpack.Unmarshal(rec.raw, rec.ty)
	if err != nil {
		return nil, "", fmt.Errorf("product %q: %w", label, err)
	}
	return ctyToGo(cv)
}

func (m *MsgpackStore) writeFile(creator, label string, id *store.LevelID, raw []byte) error {
	it := m.items[label]
	container := it.Container
	if container == "" {
		container = label
	}
	name := fmt.Sprintf("%s-%s-%016x.msgpack", container, creator, id.Hash())
	if err := os.WriteFile(filepath.Join(m.dir, name), raw, 0o644); err != nil {
		return fmt.Errorf("writing container %q: %w", container, err)
	}
	return nil
}

func recordKey(creator, label string, id *store.LevelID) string {
	return fmt.Sprintf("%s|%s|%016x", creator, label, id.Hash())
}

// ctyToGo converts a deserialized cty value back to a native Go value.
func ctyToGo(v cty.Value) (any, string, error) {
	switch v.Type() {
	case cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, "", err
		}
		if f == float64(int64(f)) {
			return int64(f), "int64", nil
		}
		return f, "float64", nil
	case cty.String:
		var s string
		if err := gocty.FromCtyValue(v, &s); err != nil {
			return nil, "", err
		}
		return s, "string", nil
	case cty.Bool:
		var b bool
		if err := gocty.FromCtyValue(v, &b); err != nil {
			return nil, "", err
		}
		return b, "bool", nil
	}
	return v, v.Type().FriendlyName(), nil
}
