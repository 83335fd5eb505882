package collectionutils

import "sync"

type SafeMap[K comparable, V any] struct {
	data   map[K]V
	mutext sync.RWMutex
}

func (safeMap *SafeMap[K, V]) Store(newKey K, newValue V) {
	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	safeMap.data[newKey] = newValue
}

func (safeMap *SafeMap[K, V]) Get(key K) (V, bool) {
	safeMap.mutext.RLock()
	defer safeMap.mutext.RUnlock()
	value, exists := safeMap.data[key]

	return value, exists
}

func (safeMap *SafeMap[K, V]) Delete(key K) {
	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	delete(safeMap.data, key)
}

// DeleteIf removes every entry for which remove returns true and reports how
// many were dropped.
func (safeMap *SafeMap[K, V]) DeleteIf(remove func(K, V) bool) int {
	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	removed := 0
	for k, v := range safeMap.data {
		if remove(k, v) {
			delete(safeMap.data, k)
			removed++
		}
	}
	return removed
}

func (safeMap *SafeMap[K, V]) Len() int {
	safeMap.mutext.RLock()
	defer safeMap.mutext.RUnlock()
	return len(safeMap.data)
}

func New[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		data: make(map[K]V),
	}
}

// StoreIf stores newValue only when replace reports that the current entry may be
// replaced. It returns whether the value was stored.
func (safeMap *SafeMap[K, V]) StoreIf(newKey K, newValue V, replace func(current V, exists bool) bool) bool {
	safeMap.mutext.Lock()
	defer safeMap.mutext.Unlock()
	current, exists := safeMap.data[newKey]
	if !replace(current, exists) {
		return false
	}
	safeMap.data[newKey] = newValue
	return true
}
