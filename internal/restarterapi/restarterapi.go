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

// Package restarterapi holds the labels, annotation keys and shared types
// that every component (reflector, reconciler, webhook) agrees on.
package restarterapi

import "fmt"

const (
	// EnabledLabel opts a StatefulSet or Pod into this controller.
	EnabledLabel = "restarter.stackable.tech/enabled"
	// EnabledLabelValue is the only value of EnabledLabel that counts as opted in.
	EnabledLabelValue = "true"

	// ConfigMapAnnotationPrefix namespaces annotations this controller writes for ConfigMap referents.
	ConfigMapAnnotationPrefix = "configmap.restarter.stackable.tech/"
	// SecretAnnotationPrefix namespaces annotations this controller writes for Secret referents.
	SecretAnnotationPrefix = "secret.restarter.stackable.tech/"

	// ExpiresAtAnnotationPrefix namespaces Pod annotations carrying an RFC3339 expiry deadline.
	ExpiresAtAnnotationPrefix = "restarter.stackable.tech/expires-at."

	// FieldManager is the server-side-apply field-manager identity used for every
	// annotation patch this controller submits to a StatefulSet.
	FieldManager = "restarter.stackable.tech/statefulset"

	// WebhookConfigurationName is the cluster-scoped MutatingWebhookConfiguration this
	// controller creates and maintains when the webhook is enabled.
	WebhookConfigurationName = "restarter-sts-enricher.stackable.tech"
)

// ReferentKind distinguishes the two kinds of referents this controller tracks.
type ReferentKind string

const (
	// KindConfigMap identifies a ConfigMap referent.
	KindConfigMap ReferentKind = "ConfigMap"
	// KindSecret identifies a Secret referent.
	KindSecret ReferentKind = "Secret"
)

// AnnotationPrefix returns the annotation key prefix this controller uses for kind.
func (k ReferentKind) AnnotationPrefix() string {
	switch k {
	case KindSecret:
		return SecretAnnotationPrefix
	case KindConfigMap:
		return ConfigMapAnnotationPrefix
	default:
		return ""
	}
}

// AnnotationKey builds the annotation key this controller writes for a referent of kind k named name.
func (k ReferentKind) AnnotationKey(name string) string {
	return k.AnnotationPrefix() + name
}

// Reference identifies a single ConfigMap or Secret named by a Pod template.
type Reference struct {
	Kind ReferentKind
	Name string
}

// CacheEntry is the metadata-only record the reflector caches retain per referent.
// Full object bodies are discarded; only identity-and-version is needed to detect change.
type CacheEntry struct {
	UID             string
	ResourceVersion string
}

// Digest renders the cache entry the way it is stamped into a Pod template annotation.
func (e CacheEntry) Digest() string {
	return fmt.Sprintf("%s/%s", e.UID, e.ResourceVersion)
}
