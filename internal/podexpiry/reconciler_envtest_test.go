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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

var _ = Describe("Pod expiry evictor", func() {
	const (
		timeout  = 10 * time.Second
		interval = 100 * time.Millisecond
	)

	var namespace string

	BeforeEach(func() {
		ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{GenerateName: "podexpiry-test-"}}
		Expect(k8sClient.Create(ctx, ns)).To(Succeed())
		namespace = ns.Name
	})

	It("evicts a Pod once its expiry annotation deadline has passed", func() {
		deadline := testClock.Now().Add(-time.Minute)
		pod := expiringPod(namespace, "p1", deadline)
		Expect(k8sClient.Create(ctx, pod)).To(Succeed())

		Eventually(func() bool {
			got := &corev1.Pod{}
			err := k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: "p1"}, got)
			if apierrors.IsNotFound(err) {
				return true
			}
			return got.DeletionTimestamp != nil
		}, timeout, interval).Should(BeTrue())
	})

	It("does not evict an expired Pod without the restarter opt-in label", func() {
		deadline := testClock.Now().Add(-time.Minute)
		pod := expiringPod(namespace, "p-unlabelled", deadline)
		pod.Labels = nil
		Expect(k8sClient.Create(ctx, pod)).To(Succeed())

		Consistently(func() bool {
			got := &corev1.Pod{}
			if err := k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: "p-unlabelled"}, got); err != nil {
				return false
			}
			return got.DeletionTimestamp == nil
		}, 2*time.Second, interval).Should(BeTrue())
	})

	It("does not evict a Pod already being deleted", func() {
		deadline := testClock.Now().Add(-time.Minute)
		pod := expiringPod(namespace, "p-deleting", deadline)
		pod.Finalizers = []string{"restarter.stackable.tech/test-hold"}
		Expect(k8sClient.Create(ctx, pod)).To(Succeed())
		Expect(k8sClient.Delete(ctx, pod)).To(Succeed())

		Consistently(func() []string {
			got := &corev1.Pod{}
			if err := k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: "p-deleting"}, got); err != nil {
				return nil
			}
			return got.Finalizers
		}, 2*time.Second, interval).Should(ContainElement("restarter.stackable.tech/test-hold"))

		// Clean up the finalizer so the namespace can be torn down.
		pending := &corev1.Pod{}
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: "p-deleting"}, pending)).To(Succeed())
		pending.Finalizers = nil
		Expect(k8sClient.Update(ctx, pending)).To(Succeed())
	})
})

func expiringPod(namespace, name string, deadline time.Time) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{restarterapi.EnabledLabel: restarterapi.EnabledLabelValue},
			Annotations: map[string]string{
				restarterapi.ExpiresAtAnnotationPrefix + "tls": deadline.UTC().Format(time.RFC3339),
			},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "main", Image: "nginx:latest"}},
		},
	}
}
