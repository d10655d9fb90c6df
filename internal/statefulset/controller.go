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
	"context"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/stackabletech/restarter/internal/reflector"
	"github.com/stackabletech/restarter/internal/restarterapi"
)

// SetupWithManager wires the three watches this reflector depends on:
// StatefulSet (scoped to the opt-in label, self-enqueue), and ConfigMap and
// Secret (unfiltered, fan-out to every currently-known StatefulSet). A
// referent trigger is not modelled as a cross-reference on the object, it
// is a broadcast to the StatefulSet index the reflector itself maintains.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	optedIn := predicate.NewPredicateFuncs(func(obj client.Object) bool {
		return obj.GetLabels()[restarterapi.EnabledLabel] == restarterapi.EnabledLabelValue
	})

	// Mark both referent caches initialised once the informers backing them
	// have completed their initial list/sync, not when the first object
	// event happens to be dispatched: a kind with zero objects anywhere in
	// the watched scope (e.g. no Secrets at all) still finishes its sync but
	// never fires a Create, so per-event marking would leave Ready()
	// permanently false.
	if err := mgr.Add(manager.RunnableFunc(func(ctx context.Context) error {
		if mgr.GetCache().WaitForCacheSync(ctx) {
			r.Caches.ConfigMaps.MarkInitialized()
			r.Caches.Secrets.MarkInitialized()
		}
		<-ctx.Done()
		return nil
	})); err != nil {
		return err
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&appsv1.StatefulSet{}, builder.WithPredicates(optedIn)).
		Watches(
			&corev1.ConfigMap{},
			handler.EnqueueRequestsFromMapFunc(r.fanOutConfigMaps),
			builder.WithPredicates(referentCachePredicate(r.Caches.ConfigMaps)),
		).
		Watches(
			&corev1.Secret{},
			handler.EnqueueRequestsFromMapFunc(r.fanOutSecrets),
			builder.WithPredicates(referentCachePredicate(r.Caches.Secrets)),
		).
		Named("statefulset-restarter").
		Complete(r)
}

// referentCachePredicate updates the referent cache as a side effect of
// every create, update and delete event, then lets that event through so the
// fan-out map function below runs; generic events are dropped without
// touching the cache. Initialisation of the cache is signalled separately,
// by the manager.RunnableFunc registered in SetupWithManager once the
// backing informer's initial sync completes.
func referentCachePredicate(cache *reflector.ReferentCache) predicate.Funcs {
	record := func(obj client.Object) {
		key := types.NamespacedName{Namespace: obj.GetNamespace(), Name: obj.GetName()}
		cache.Set(key, restarterapi.CacheEntry{
			UID:             string(obj.GetUID()),
			ResourceVersion: obj.GetResourceVersion(),
		})
	}
	return predicate.Funcs{
		CreateFunc: func(e event.CreateEvent) bool {
			record(e.Object)
			return true
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			record(e.ObjectNew)
			return true
		},
		DeleteFunc: func(e event.DeleteEvent) bool {
			key := types.NamespacedName{Namespace: e.Object.GetNamespace(), Name: e.Object.GetName()}
			cache.Delete(key)
			return true
		},
		GenericFunc: func(event.GenericEvent) bool { return false },
	}
}

func (r *Reconciler) fanOutConfigMaps(_ context.Context, _ client.Object) []reconcile.Request {
	return r.fanOutAll()
}

func (r *Reconciler) fanOutSecrets(_ context.Context, _ client.Object) []reconcile.Request {
	return r.fanOutAll()
}

// fanOutAll enqueues a reconcile request for every StatefulSet currently in
// the reflector's index. This is the one place a ConfigMap or Secret event
// reaches every dependent StatefulSet.
func (r *Reconciler) fanOutAll() []reconcile.Request {
	keys := r.Index.List()
	requests := make([]reconcile.Request, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, reconcile.Request{NamespacedName: key})
	}
	return requests
}
