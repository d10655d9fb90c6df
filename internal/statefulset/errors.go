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

import "errors"

// ErrInvalidObject is returned when the watched object cannot be used to
// compute annotations (a nil StatefulSet). The reconciler's error
// policy treats this as AwaitChange: a later modification re-triggers.
var ErrInvalidObject = errors.New("statefulset: invalid object")

// ErrCacheUninitialised is returned while either referent cache has not yet
// completed its initial list. Retryable with a short fixed backoff.
var ErrCacheUninitialised = errors.New("statefulset: reference caches not yet initialised")

// ErrPatchFailed wraps a server-side-apply patch failure. Retryable with a
// short fixed backoff.
var ErrPatchFailed = errors.New("statefulset: annotation patch failed")
