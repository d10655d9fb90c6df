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

package delayed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGet_BlocksUntilInit(t *testing.T) {
	w, r := New[int]()

	const readers = 5
	var wg sync.WaitGroup
	results := make([]int, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.Get(context.Background())
			if err != nil {
				t.Errorf("Get() error = %v", err)
			}
			results[i] = v
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	w.Init(42)
	wg.Wait()

	for _, v := range results {
		if v != 42 {
			t.Fatalf("reader got %d, want 42", v)
		}
	}
}

func TestInit_RedundantCallsAreNoOp(t *testing.T) {
	w, r := New[int]()
	w.Init(1)
	w.Init(2)

	v, err := r.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != 1 {
		t.Fatalf("Get() = %d, want 1 (first Init wins)", v)
	}
}

func TestDrop_WakesReadersWithError(t *testing.T) {
	w, r := New[string]()
	cause := errors.New("writer context cancelled")

	done := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	w.Drop(cause)

	if err := <-done; !errors.Is(err, cause) {
		t.Fatalf("Get() error = %v, want %v", err, cause)
	}
}

func TestDrop_DefaultsToErrInitializerDropped(t *testing.T) {
	w, r := New[string]()
	w.Drop(nil)

	_, err := r.Get(context.Background())
	if !errors.Is(err, ErrInitializerDropped) {
		t.Fatalf("Get() error = %v, want ErrInitializerDropped", err)
	}
}

func TestGet_RespectsContextCancellation(t *testing.T) {
	_, r := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Get(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() error = %v, want context.Canceled", err)
	}
}

func TestTryGet_NonBlocking(t *testing.T) {
	w, r := New[int]()

	if _, ready, _ := r.TryGet(); ready {
		t.Fatalf("TryGet() ready = true before Init")
	}

	w.Init(7)

	v, ready, err := r.TryGet()
	if !ready || err != nil || v != 7 {
		t.Fatalf("TryGet() = (%d, %v, %v), want (7, true, nil)", v, ready, err)
	}
}
