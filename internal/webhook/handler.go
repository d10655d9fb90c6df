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

package webhook

import (
	"context"
	"encoding/json"
	"net/http"

	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/stackabletech/restarter/internal/delayed"
	"github.com/stackabletech/restarter/internal/reflector"
	"github.com/stackabletech/restarter/internal/statefulset"
)

// StatefulSetMutator is the admission.Handler backing the one HTTPS route
// this component serves: AdmissionReview v1 for apps/v1 StatefulSet CREATE.
// It reads from the reflector's caches through a delayed handle so it is
// constructible and can start serving before the reflector's watches warm.
type StatefulSetMutator struct {
	CachesReader *delayed.Reader[*reflector.Caches]
	Decoder      admission.Decoder
}

// Handle decodes the incoming StatefulSet, computes its referent
// annotations against the reflector's cached state, and returns the result
// as a JSON Patch.
func (m *StatefulSetMutator) Handle(ctx context.Context, req admission.Request) admission.Response {
	logger := log.FromContext(ctx).WithValues("statefulset", req.Name, "namespace", req.Namespace)

	if len(req.Object.Raw) == 0 {
		return admission.Errored(http.StatusBadRequest, errNoObject)
	}

	sts := &appsv1.StatefulSet{}
	if err := m.Decoder.Decode(req, sts); err != nil {
		return admission.Errored(http.StatusBadRequest, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(req.Object.Raw, &raw); err != nil {
		return admission.Errored(http.StatusBadRequest, err)
	}

	caches, err := m.CachesReader.Get(ctx)
	if err != nil {
		logger.Info("reflector caches unavailable, deferring to failurePolicy=Ignore", "error", err.Error())
		return admission.Denied(err.Error())
	}

	annotations, err := statefulset.ComputeAnnotations(sts, caches)
	if err != nil {
		logger.Info("computeAnnotations failed, deferring to failurePolicy=Ignore", "error", err.Error())
		return admission.Denied(err.Error())
	}

	ops := buildPatch(raw, annotations)
	resp := admission.Allowed("")
	resp.Patches = ops
	patchType := admission.PatchTypeJSONPatch
	resp.PatchType = &patchType
	return resp
}

var errNoObject = admissionProtocolError("admission request carried no object")

type admissionProtocolError string

func (e admissionProtocolError) Error() string { return string(e) }
