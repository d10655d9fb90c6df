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
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	appsv1ac "k8s.io/client-go/applyconfigurations/apps/v1"
	corev1ac "k8s.io/client-go/applyconfigurations/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

// applyAnnotations submits a server-side-apply patch containing only object
// identity (name/namespace/uid) and the computed annotations under
// spec.template.metadata.annotations, using the dedicated restarter field
// manager with force=true. An empty annotations map is still submitted: SSA
// still runs so the controller claims (and, on a rename, relinquishes)
// ownership of the keys it manages.
func applyAnnotations(ctx context.Context, c client.Client, sts *appsv1.StatefulSet, annotations map[string]string) error {
	applyCfg := appsv1ac.StatefulSet(sts.Name, sts.Namespace).
		WithUID(sts.UID).
		WithSpec(appsv1ac.StatefulSetSpec().
			WithTemplate(corev1ac.PodTemplateSpec().
				WithAnnotations(annotations)))

	obj, err := runtime.DefaultUnstructuredConverter.ToUnstructured(applyCfg)
	if err != nil {
		return fmt.Errorf("%w: convert apply configuration: %v", ErrPatchFailed, err)
	}
	patch := &unstructured.Unstructured{Object: obj}
	patch.SetAPIVersion("apps/v1")
	patch.SetKind("StatefulSet")

	if err := c.Patch(ctx, patch, client.Apply,
		client.FieldOwner(restarterapi.FieldManager), client.ForceOwnership); err != nil {
		return fmt.Errorf("%w: %v", ErrPatchFailed, err)
	}
	return nil
}
