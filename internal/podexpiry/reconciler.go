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
	"context"
	"fmt"
	"time"

	policyv1 "k8s.io/api/policy/v1"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// disruptionBudgetBackoff is the short fixed delay used when an eviction is
// refused with 429 because a PodDisruptionBudget forbids it right now.
const disruptionBudgetBackoff = 10 * time.Second

// Clock abstracts wall-clock reads so tests can inject a fixed time instead
// of racing real time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Reconciler implements the Pod expiry evictor. It holds no per-object state
// beyond the controller-runtime workqueue's requeue scheduling; every
// decision is a pure function of the Pod's current annotations.
type Reconciler struct {
	client.Client
	Recorder record.EventRecorder
	Clock    Clock
}

func (r *Reconciler) clock() Clock {
	if r.Clock == nil {
		return realClock{}
	}
	return r.Clock
}

// Reconcile evaluates the Pod's expiry annotations and either evicts it,
// requeues for the soonest remaining deadline, or leaves it alone.
func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithValues("pod", req.NamespacedName)

	pod := &corev1.Pod{}
	if err := r.Get(ctx, req.NamespacedName, pod); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if pod.Name == "" {
		return ctrl.Result{}, ErrPodHasNoName
	}
	if pod.Namespace == "" {
		return ctrl.Result{}, ErrPodHasNoNamespace
	}

	meta := PodMeta{Name: pod.Name, Namespace: pod.Namespace, Annotations: pod.Annotations}
	if pod.DeletionTimestamp != nil {
		t := pod.DeletionTimestamp.Time
		meta.DeletionTimestamp = &t
	}

	if meta.DeletionTimestamp != nil {
		return ctrl.Result{}, nil
	}

	earliest, err := earliestExpiry(meta)
	if err != nil {
		logger.Error(err, "pod has unparseable expiry annotation")
		r.event(pod, "Warning", "UnparseableExpiryTimestamp", err.Error())
		return ctrl.Result{RequeueAfter: disruptionBudgetBackoff}, nil
	}
	if earliest == nil {
		return ctrl.Result{}, nil
	}

	now := r.clock().Now()
	remaining := earliest.Sub(now)
	if remaining > 0 {
		return ctrl.Result{RequeueAfter: clampRequeue(remaining)}, nil
	}

	if err := r.evict(ctx, pod); err != nil {
		if apierrors.IsTooManyRequests(err) {
			logger.Info("eviction deferred by disruption budget", "error", err.Error())
			return ctrl.Result{RequeueAfter: disruptionBudgetBackoff}, nil
		}
		wrapped := fmt.Errorf("%w: %w", ErrEvictFailed, err)
		logger.Error(wrapped, "eviction failed")
		r.event(pod, "Warning", "EvictFailed", wrapped.Error())
		return ctrl.Result{RequeueAfter: disruptionBudgetBackoff}, nil
	}

	logger.Info("evicted expired pod")
	r.event(pod, "Normal", "Evicted", "pod evicted: expiry annotation deadline passed")
	return ctrl.Result{}, nil
}

func (r *Reconciler) evict(ctx context.Context, pod *corev1.Pod) error {
	eviction := &policyv1.Eviction{
		ObjectMeta: metav1.ObjectMeta{Name: pod.Name, Namespace: pod.Namespace},
	}
	return r.SubResource("eviction").Create(ctx, pod, eviction)
}

func (r *Reconciler) event(pod *corev1.Pod, eventType, reason, message string) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.Event(pod, eventType, reason, message)
}
