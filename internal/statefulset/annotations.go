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

package statefulset

import (
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/stackabletech/restarter/internal/podref"
	"github.com/stackabletech/restarter/internal/reflector"
	"github.com/stackabletech/restarter/internal/restarterapi"
)

// referentKinds lists every kind the reference extractor runs for, in a
// fixed order so ComputeAnnotations' traversal is itself deterministic.
var referentKinds = []restarterapi.ReferentKind{restarterapi.KindConfigMap, restarterapi.KindSecret}

// ComputeAnnotations is the pure core §4.D requires: given a StatefulSet and
// the current reference caches, it returns the exact annotation map that
// must be present under spec.template.metadata.annotations. It performs no
// I/O and is called identically by the reconciler (which then submits a
// server-side-apply patch) and by the admission webhook (which then builds
// a JSON patch), guaranteeing identical output for identical input.
//
// If a referent is not (yet) present in its cache, it is silently dropped
// from the result -- it is as if the reference did not exist. The caches
// must both be initialised before calling; ErrCacheUninitialised is returned
// otherwise.
func ComputeAnnotations(sts *appsv1.StatefulSet, caches *reflector.Caches) (map[string]string, error) {
	if sts == nil {
		return nil, ErrInvalidObject
	}
	if !caches.Ready() {
		return nil, ErrCacheUninitialised
	}

	annotations := make(map[string]string)
	podSpec := &sts.Spec.Template.Spec

	for _, kind := range referentKinds {
		cache := caches.ForKind(kind)
		for _, name := range podref.Names(podSpec, kind) {
			entry, ok := cache.Get(types.NamespacedName{Namespace: sts.Namespace, Name: name})
			if !ok {
				continue
			}
			annotations[kind.AnnotationKey(name)] = entry.Digest()
		}
	}

	return annotations, nil
}

// SortedKeys returns the map's keys in ascending order, giving every
// consumer of ComputeAnnotations' result (the SSA patch builder, the JSON
// patch builder) a stable iteration order so repeated runs against
// unchanged state produce byte-identical output.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
