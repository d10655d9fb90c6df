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

// Package webhook implements the StatefulSet admission mutator (component
// F): a handler invoked synchronously on StatefulSet CREATE that runs the
// same computeAnnotations core the reflector uses and returns the result as
// a JSON Patch, eliminating the "restart Pod 0 immediately after creation"
// race the eventually-consistent reflector cannot avoid.
package webhook

import (
	"strings"

	jsonpatch "gomodules.xyz/jsonpatch/v2"

	"github.com/stackabletech/restarter/internal/statefulset"
)

// escapeJSONPointer escapes a key for use as a JSON Pointer path segment
// per RFC 6901: '~' must be escaped first (to '~0'), then '/' (to '~1').
func escapeJSONPointer(key string) string {
	key = strings.ReplaceAll(key, "~", "~0")
	key = strings.ReplaceAll(key, "/", "~1")
	return key
}

// buildPatch emits an `add` of an empty object for each of /spec,
// /spec/template/metadata, /spec/template/metadata/annotations that is
// absent from the submitted object, then one `add` per computed annotation.
// raw is the admission request object decoded into a generic map so
// presence can be distinguished from a zero value.
func buildPatch(raw map[string]interface{}, annotations map[string]string) []jsonpatch.Operation {
	var ops []jsonpatch.Operation

	specMap, specOK := raw["spec"].(map[string]interface{})
	if !specOK {
		ops = append(ops, jsonpatch.NewOperation("add", "/spec", map[string]interface{}{}))
		specMap = map[string]interface{}{}
	}

	templateMap, _ := specMap["template"].(map[string]interface{})
	if templateMap == nil {
		templateMap = map[string]interface{}{}
	}

	metaMap, metaOK := templateMap["metadata"].(map[string]interface{})
	if !metaOK {
		ops = append(ops, jsonpatch.NewOperation("add", "/spec/template/metadata", map[string]interface{}{}))
		metaMap = map[string]interface{}{}
	}

	if _, annOK := metaMap["annotations"].(map[string]interface{}); !annOK {
		ops = append(ops, jsonpatch.NewOperation("add", "/spec/template/metadata/annotations", map[string]interface{}{}))
	}

	for _, key := range statefulset.SortedKeys(annotations) {
		path := "/spec/template/metadata/annotations/" + escapeJSONPointer(key)
		ops = append(ops, jsonpatch.NewOperation("add", path, annotations[key]))
	}

	return ops
}
