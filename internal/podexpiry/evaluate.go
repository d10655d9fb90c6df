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

// Package podexpiry implements the Pod expiry evictor (component E): it
// parses expiry annotations, schedules the next reconciliation at the
// soonest deadline, and invokes the eviction subresource when due.
package podexpiry

import (
	"strings"
	"time"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

// maxRequeueDelay clamps the remaining duration before an expiry deadline,
// guarding against arithmetic overflow in the workqueue's delay scheduler
// for a Pod whose annotated expiry is implausibly far in the future.
const maxRequeueDelay = 6 * 30 * 24 * time.Hour

// PodMeta is the partial Pod view this component's pure logic operates on:
// only the fields the algorithm actually inspects.
type PodMeta struct {
	Name              string
	Namespace         string
	Annotations       map[string]string
	DeletionTimestamp *time.Time
}

// earliestExpiry scans meta.Annotations for every key with the expires-at
// prefix, parses each as RFC3339, and returns the earliest. If none are
// present, it returns a nil time and no error. A value that fails to parse
// aborts with an UnparseableExpiryTimestampError -- the Pod is malformed.
func earliestExpiry(meta PodMeta) (*time.Time, error) {
	var earliest *time.Time
	for key, value := range meta.Annotations {
		if !strings.HasPrefix(key, restarterapi.ExpiresAtAnnotationPrefix) {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, &UnparseableExpiryTimestampError{Annotation: key, Value: value, Cause: err}
		}
		if earliest == nil || parsed.Before(*earliest) {
			earliest = &parsed
		}
	}
	return earliest, nil
}

// clampRequeue bounds a remaining duration to maxRequeueDelay.
func clampRequeue(remaining time.Duration) time.Duration {
	if remaining > maxRequeueDelay {
		return maxRequeueDelay
	}
	return remaining
}
