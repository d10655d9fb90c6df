/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package reflector holds the in-memory ConfigMap/Secret metadata indexes
// and the StatefulSet index used to fan reconcile triggers out to every
// opted-in StatefulSet when a referent changes. The referent caches have
// concurrent readers and a single writer: only the watch event handlers
// mutate them. The StatefulSet index is written by the reconciler.
package reflector

import (
	"sync"
	"sync/atomic"

	"k8s.io/apimachinery/pkg/types"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

// ReferentCache is a metadata-only index for one referent kind (ConfigMap or
// Secret), keyed by namespace/name. Only (uid, resourceVersion) is retained;
// full object bodies are discarded to bound memory.
type ReferentCache struct {
	mu          sync.RWMutex
	entries     map[types.NamespacedName]restarterapi.CacheEntry
	initialized atomic.Bool
}

// NewReferentCache returns an empty, uninitialised cache.
func NewReferentCache() *ReferentCache {
	return &ReferentCache{entries: make(map[types.NamespacedName]restarterapi.CacheEntry)}
}

// Set records or updates the metadata for key.
func (c *ReferentCache) Set(key types.NamespacedName, entry restarterapi.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Delete removes key from the cache, e.g. on a watch delete event.
func (c *ReferentCache) Delete(key types.NamespacedName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Get returns the cached entry for key, if any.
func (c *ReferentCache) Get(key types.NamespacedName) (restarterapi.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// MarkInitialized records that the informer backing this cache has
// completed its initial list/watch sync, independent of whether that sync
// yielded any objects at all.
func (c *ReferentCache) MarkInitialized() {
	c.initialized.Store(true)
}

// Initialized reports whether MarkInitialized has been called.
func (c *ReferentCache) Initialized() bool {
	return c.initialized.Load()
}

// Caches bundles the two referent caches the StatefulSet reconciler and the
// admission webhook both read from.
type Caches struct {
	ConfigMaps *ReferentCache
	Secrets    *ReferentCache
}

// NewCaches returns a pair of empty, uninitialised referent caches.
func NewCaches() *Caches {
	return &Caches{
		ConfigMaps: NewReferentCache(),
		Secrets:    NewReferentCache(),
	}
}

// Ready reports whether both caches have completed their initial list.
func (c *Caches) Ready() bool {
	return c.ConfigMaps.Initialized() && c.Secrets.Initialized()
}

// ForKind returns the cache backing referent kind k.
func (c *Caches) ForKind(k restarterapi.ReferentKind) *ReferentCache {
	switch k {
	case restarterapi.KindConfigMap:
		return c.ConfigMaps
	case restarterapi.KindSecret:
		return c.Secrets
	default:
		return nil
	}
}

// StatefulSetIndex tracks the set of opted-in StatefulSets the reflector
// currently knows about, so that a referent change can be fanned out to
// every one of them.
type StatefulSetIndex struct {
	mu  sync.RWMutex
	set map[types.NamespacedName]struct{}
}

// NewStatefulSetIndex returns an empty index.
func NewStatefulSetIndex() *StatefulSetIndex {
	return &StatefulSetIndex{set: make(map[types.NamespacedName]struct{})}
}

// Add records key as a currently-known opted-in StatefulSet.
func (i *StatefulSetIndex) Add(key types.NamespacedName) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set[key] = struct{}{}
}

// Remove drops key, e.g. on delete or on the opt-in label being removed.
func (i *StatefulSetIndex) Remove(key types.NamespacedName) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.set, key)
}

// List returns a snapshot of every currently-known key. The fan-out is
// best-effort: a StatefulSet added after the snapshot is taken is reconciled
// on its own add event, not retroactively.
func (i *StatefulSetIndex) List() []types.NamespacedName {
	i.mu.RLock()
	defer i.mu.RUnlock()
	keys := make([]types.NamespacedName, 0, len(i.set))
	for key := range i.set {
		keys = append(keys, key)
	}
	return keys
}
