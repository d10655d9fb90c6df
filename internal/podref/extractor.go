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

// Package podref is a pure traversal of a Pod template yielding the
// ConfigMap and Secret names it references. No I/O, no failure modes:
// missing intermediate fields are normal in partial Pod specs and are
// skipped silently.
package podref

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

// Names returns the deduplicated set of names referenced by podSpec for
// the given referent kind, covering volumes (including projected volume
// sources), container env/envFrom, and init-container env/envFrom.
func Names(podSpec *corev1.PodSpec, kind restarterapi.ReferentKind) []string {
	if podSpec == nil {
		return nil
	}

	seen := make(map[string]struct{})
	add := func(name string) {
		if name != "" {
			seen[name] = struct{}{}
		}
	}

	for _, container := range podSpec.Containers {
		collectContainerRefs(container, kind, add)
	}
	for _, container := range podSpec.InitContainers {
		collectContainerRefs(container, kind, add)
	}
	collectVolumeRefs(podSpec.Volumes, kind, add)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

func collectContainerRefs(container corev1.Container, kind restarterapi.ReferentKind, add func(string)) {
	for _, env := range container.Env {
		if env.ValueFrom == nil {
			continue
		}
		switch kind {
		case restarterapi.KindConfigMap:
			if ref := env.ValueFrom.ConfigMapKeyRef; ref != nil {
				add(ref.Name)
			}
		case restarterapi.KindSecret:
			if ref := env.ValueFrom.SecretKeyRef; ref != nil {
				add(ref.Name)
			}
		}
	}

	for _, envFrom := range container.EnvFrom {
		switch kind {
		case restarterapi.KindConfigMap:
			if ref := envFrom.ConfigMapRef; ref != nil {
				add(ref.Name)
			}
		case restarterapi.KindSecret:
			if ref := envFrom.SecretRef; ref != nil {
				add(ref.Name)
			}
		}
	}
}

func collectVolumeRefs(volumes []corev1.Volume, kind restarterapi.ReferentKind, add func(string)) {
	for _, volume := range volumes {
		switch kind {
		case restarterapi.KindConfigMap:
			if volume.ConfigMap != nil {
				add(volume.ConfigMap.Name)
			}
		case restarterapi.KindSecret:
			if volume.Secret != nil {
				add(volume.Secret.SecretName)
			}
		}

		if volume.Projected == nil {
			continue
		}
		for _, source := range volume.Projected.Sources {
			switch kind {
			case restarterapi.KindConfigMap:
				if source.ConfigMap != nil {
					add(source.ConfigMap.Name)
				}
			case restarterapi.KindSecret:
				if source.Secret != nil {
					add(source.Secret.Name)
				}
			}
		}
	}
}
