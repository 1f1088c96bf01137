package prefs

import "sync"

// Memory is an in-process Store. Contents are lost when the process exits.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

// Begin opens namespace.
func (m *Memory) Begin(namespace string, readOnly bool) (Namespace, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	return &memoryNamespace{handle: handle{name: namespace, readOnly: readOnly}, store: m}, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Len reports how many keys namespace holds.
func (m *Memory) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[namespace])
}

type memoryNamespace struct {
	handle
	store *Memory
}

func (n *memoryNamespace) GetString(key, def string) string {
	if n.checkRead() != nil {
		return def
	}
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	if v, ok := n.store.data[n.name][key]; ok {
		return v
	}
	return def
}

func (n *memoryNamespace) PutString(key, value string) error {
	if err := n.checkWrite(key); err != nil {
		return err
	}
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	ns, ok := n.store.data[n.name]
	if !ok {
		ns = make(map[string]string)
		n.store.data[n.name] = ns
	}
	ns[key] = value
	return nil
}

func (n *memoryNamespace) Remove(key string) error {
	if err := n.checkWrite(key); err != nil {
		return err
	}
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	delete(n.store.data[n.name], key)
	return nil
}
