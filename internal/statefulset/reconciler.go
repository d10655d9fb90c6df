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

// Package statefulset implements the StatefulSet restart reflector
// (component D): it consumes the reference extractor and the reflector
// caches to compute the annotation map for an opted-in StatefulSet and
// applies it via server-side-apply.
package statefulset

import (
	"context"
	"errors"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/stackabletech/restarter/internal/reflector"
	"github.com/stackabletech/restarter/internal/restarterapi"
)

const shortBackoff = 2 * time.Second

// Reconciler implements the StatefulSet restart reflector. It only ever
// reconciles StatefulSets carrying the opt-in label; the watch predicate in
// SetupWithManager enforces that invariant before a request ever reaches
// Reconcile.
type Reconciler struct {
	client.Client
	Caches   *reflector.Caches
	Index    *reflector.StatefulSetIndex
	Recorder record.EventRecorder
}

// Reconcile rejects invalid objects, waits for the reflector caches to be
// ready, computes the annotation map, and submits a server-side-apply patch
// claiming it under the restarter field manager.
func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithValues("statefulset", req.NamespacedName)

	sts := &appsv1.StatefulSet{}
	if err := r.Get(ctx, req.NamespacedName, sts); err != nil {
		if apierrors.IsNotFound(err) {
			r.Index.Remove(req.NamespacedName)
			return ctrl.Result{}, nil
		}
		logger.Error(err, "unable to fetch StatefulSet")
		return ctrl.Result{}, err
	}

	if sts.Labels[restarterapi.EnabledLabel] != restarterapi.EnabledLabelValue {
		r.Index.Remove(req.NamespacedName)
		return ctrl.Result{}, nil
	}
	r.Index.Add(req.NamespacedName)

	annotations, err := ComputeAnnotations(sts, r.Caches)
	if err != nil {
		switch {
		case errors.Is(err, ErrCacheUninitialised):
			return ctrl.Result{RequeueAfter: shortBackoff}, nil
		case errors.Is(err, ErrInvalidObject):
			r.event(sts, "Warning", "InvalidObject", err.Error())
			return ctrl.Result{}, nil
		default:
			return ctrl.Result{}, err
		}
	}

	if err := applyAnnotations(ctx, r.Client, sts, annotations); err != nil {
		logger.Error(err, "annotation patch failed")
		r.event(sts, "Warning", "PatchFailed", err.Error())
		return ctrl.Result{RequeueAfter: shortBackoff}, nil
	}

	logger.V(1).Info("stamped referent annotations", "count", len(annotations))
	return ctrl.Result{}, nil
}

func (r *Reconciler) event(sts *appsv1.StatefulSet, eventType, reason, message string) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.Event(sts, eventType, reason, message)
}

// Key is a convenience constructor that addresses a StatefulSet by namespace
// and name as a reconcile key.
func Key(namespace, name string) types.NamespacedName {
	return types.NamespacedName{Namespace: namespace, Name: name}
}
