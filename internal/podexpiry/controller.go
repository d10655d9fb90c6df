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

package podexpiry

import (
	corev1 "k8s.io/api/core/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

// SetupWithManager watches the Pods in scope that carry the opt-in label;
// among those, eviction eligibility is decided by the expiry annotations a
// Pod carries. Watch events for Pods without the label are filtered out.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	optedIn := predicate.NewPredicateFuncs(func(obj client.Object) bool {
		return obj.GetLabels()[restarterapi.EnabledLabel] == restarterapi.EnabledLabelValue
	})

	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Pod{}, builder.WithPredicates(optedIn)).
		Named("pod-expiry-evictor").
		Complete(r)
}
