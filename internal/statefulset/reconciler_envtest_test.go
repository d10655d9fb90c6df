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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

var _ = Describe("StatefulSet restart reflector", func() {
	const (
		timeout  = 10 * time.Second
		interval = 100 * time.Millisecond
	)

	var namespace string

	BeforeEach(func() {
		ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{GenerateName: "restarter-test-"}}
		Expect(k8sClient.Create(ctx, ns)).To(Succeed())
		namespace = ns.Name
	})

	It("stamps the referent digest once the ConfigMap is cached and the StatefulSet reconciles", func() {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: "cm-a", Namespace: namespace},
			Data:       map[string]string{"k": "v"},
		}
		Expect(k8sClient.Create(ctx, cm)).To(Succeed())

		sts := optedInStatefulSet(namespace, "s", "cm-a")
		Expect(k8sClient.Create(ctx, sts)).To(Succeed())

		Eventually(func() string {
			got := &appsv1.StatefulSet{}
			if err := k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: "s"}, got); err != nil {
				return ""
			}
			return got.Spec.Template.Annotations[restarterapi.KindConfigMap.AnnotationKey("cm-a")]
		}, timeout, interval).Should(Equal(digestOf(cm.UID, cm.ResourceVersion)))
	})

	It("re-stamps the digest after the referenced ConfigMap changes", func() {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: "cm-a", Namespace: namespace},
			Data:       map[string]string{"k": "v"},
		}
		Expect(k8sClient.Create(ctx, cm)).To(Succeed())

		sts := optedInStatefulSet(namespace, "s", "cm-a")
		Expect(k8sClient.Create(ctx, sts)).To(Succeed())

		key := types.NamespacedName{Namespace: namespace, Name: "s"}
		Eventually(func() string {
			got := &appsv1.StatefulSet{}
			if err := k8sClient.Get(ctx, key, got); err != nil {
				return ""
			}
			return got.Spec.Template.Annotations[restarterapi.KindConfigMap.AnnotationKey("cm-a")]
		}, timeout, interval).Should(Equal(digestOf(cm.UID, cm.ResourceVersion)))
		firstDigest := digestOf(cm.UID, cm.ResourceVersion)

		cm.Data["k"] = "v2"
		Expect(k8sClient.Update(ctx, cm)).To(Succeed())

		Eventually(func() string {
			got := &appsv1.StatefulSet{}
			if err := k8sClient.Get(ctx, key, got); err != nil {
				return ""
			}
			return got.Spec.Template.Annotations[restarterapi.KindConfigMap.AnnotationKey("cm-a")]
		}, timeout, interval).ShouldNot(Equal(firstDigest))
	})

	It("never stamps a StatefulSet that lacks the opt-in label", func() {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: "cm-not-opted-in", Namespace: namespace},
			Data:       map[string]string{"k": "v"},
		}
		Expect(k8sClient.Create(ctx, cm)).To(Succeed())

		sts := optedInStatefulSet(namespace, "s-unlabelled", "cm-not-opted-in")
		delete(sts.Labels, restarterapi.EnabledLabel)
		Expect(k8sClient.Create(ctx, sts)).To(Succeed())

		Consistently(func() map[string]string {
			got := &appsv1.StatefulSet{}
			if err := k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: "s-unlabelled"}, got); err != nil {
				return nil
			}
			return got.Spec.Template.Annotations
		}, 2*time.Second, interval).Should(BeEmpty())
	})
})

func digestOf(uid types.UID, resourceVersion string) string {
	entry := restarterapi.CacheEntry{UID: string(uid), ResourceVersion: resourceVersion}
	return entry.Digest()
}

func optedInStatefulSet(namespace, name, configMapName string) *appsv1.StatefulSet {
	replicas := int32(1)
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{restarterapi.EnabledLabel: restarterapi.EnabledLabelValue},
		},
		Spec: appsv1.StatefulSetSpec{
			Replicas:    &replicas,
			ServiceName: name,
			Selector:    &metav1.LabelSelector{MatchLabels: map[string]string{"app": name}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": name}},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "main",
						Image: "nginx:latest",
						VolumeMounts: []corev1.VolumeMount{{
							Name:      "cfg",
							MountPath: "/etc/cfg",
						}},
					}},
					Volumes: []corev1.Volume{{
						Name: "cfg",
						VolumeSource: corev1.VolumeSource{
							ConfigMap: &corev1.ConfigMapVolumeSource{
								LocalObjectReference: corev1.LocalObjectReference{Name: configMapName},
							},
						},
					}},
				},
			},
		},
	}
}
