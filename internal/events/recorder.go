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

// Package events wraps a Kubernetes event recorder so that reporting runs
// off the reconciler's critical path: each call hands off to a goroutine
// bounded by a fixed number of in-flight reports, so a reconciler waits on
// event delivery only while that many reports are already outstanding.
package events

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
)

// defaultInFlight bounds concurrent event deliveries so a burst of
// reconciles can't pile up unbounded goroutines writing Events.
const defaultInFlight = 16

// Recorder decouples reconciliation latency from event-delivery latency. It
// implements record.EventRecorder so it is a drop-in replacement wherever a
// reconciler expects one.
type Recorder struct {
	delegate record.EventRecorder
	tokens   chan struct{}
}

// New wraps delegate with a bounded-concurrency dispatcher of the given
// capacity. A non-positive capacity falls back to defaultInFlight.
func New(delegate record.EventRecorder, inFlight int) *Recorder {
	if inFlight <= 0 {
		inFlight = defaultInFlight
	}
	return &Recorder{delegate: delegate, tokens: make(chan struct{}, inFlight)}
}

// Event implements record.EventRecorder.
func (r *Recorder) Event(object runtime.Object, eventtype, reason, message string) {
	r.dispatch(func() { r.delegate.Event(object, eventtype, reason, message) })
}

// Eventf implements record.EventRecorder.
func (r *Recorder) Eventf(object runtime.Object, eventtype, reason, messageFmt string, args ...interface{}) {
	r.dispatch(func() { r.delegate.Eventf(object, eventtype, reason, messageFmt, args...) })
}

// AnnotatedEventf implements record.EventRecorder.
func (r *Recorder) AnnotatedEventf(object runtime.Object, annotations map[string]string, eventtype, reason, messageFmt string, args ...interface{}) {
	r.dispatch(func() {
		r.delegate.AnnotatedEventf(object, annotations, eventtype, reason, messageFmt, args...)
	})
}

// dispatch acquires a token, blocking the caller only if the configured
// number of deliveries are already outstanding, then runs fn on its own
// goroutine so the caller (a reconciler) does not wait for its own delivery.
func (r *Recorder) dispatch(fn func()) {
	r.tokens <- struct{}{}
	go func() {
		defer func() { <-r.tokens }()
		fn()
	}()
}
