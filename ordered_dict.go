package csb

import (
	"golang.org/x/exp/slices"
)

//OrderedDict is a key/value container that preserves insertion order.
//Setting an existing key overwrites its value without moving it.
type OrderedDict[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

//NewOrderedDict returns an empty ordered dictionary.
func NewOrderedDict[K comparable, V any]() *OrderedDict[K, V] {
	return &OrderedDict[K, V]{values: make(map[K]V)}
}

//Set stores a value under the key, appending the key on first insertion.
func (d *OrderedDict[K, V]) Set(key K, value V) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

//Get returns the value stored under the key.
func (d *OrderedDict[K, V]) Get(key K) (V, bool) {
	v, ok := d.values[key]
	return v, ok
}

//Delete removes a key and reports whether it was present.
func (d *OrderedDict[K, V]) Delete(key K) bool {
	if _, ok := d.values[key]; !ok {
		return false
	}
	delete(d.values, key)
	i := slices.Index(d.keys, key)
	d.keys = slices.Delete(d.keys, i, i+1)
	return true
}

//Len returns the number of stored keys.
func (d *OrderedDict[K, V]) Len() int {
	return len(d.keys)
}

//Keys returns the keys in insertion order.
func (d *OrderedDict[K, V]) Keys() []K {
	return slices.Clone(d.keys)
}

//Each calls fn for every key/value pair in insertion order.
func (d *OrderedDict[K, V]) Each(fn func(key K, value V)) {
	for _, k := range d.keys {
		fn(k, d.values[k])
	}
}
