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

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stackabletech/restarter/internal/restarterapi"
)

// RegistrationConfig carries the values needed to point the
// MutatingWebhookConfiguration's client-config back at this controller's
// own service, supplied on the CLI.
type RegistrationConfig struct {
	OperatorNamespace   string
	OperatorServiceName string
	ServicePath         string
	CABundle            []byte
}

// Path is the HTTP route StatefulSetMutator is registered under, and the
// default service path the MutatingWebhookConfiguration targets.
const Path = "/mutate-apps-v1-statefulset"

// EnsureMutatingWebhookConfiguration creates or updates the single
// cluster-scoped MutatingWebhookConfiguration this controller owns: it
// targets apps/v1 StatefulSet CREATE, namespaced scope, object selector
// restarter.stackable.tech/enabled=true, failurePolicy=Ignore (falling back
// to the reflector is acceptable), sideEffects=None,
// reinvocationPolicy=IfNeeded, admissionReviewVersions=[v1].
func EnsureMutatingWebhookConfiguration(ctx context.Context, c client.Client, cfg RegistrationConfig) error {
	servicePath := cfg.ServicePath
	if servicePath == "" {
		servicePath = Path
	}

	failurePolicy := admissionregistrationv1.Ignore
	sideEffects := admissionregistrationv1.SideEffectClassNone
	reinvocationPolicy := admissionregistrationv1.IfNeededReinvocationPolicy
	scope := admissionregistrationv1.NamespacedScope

	desired := admissionregistrationv1.MutatingWebhookConfiguration{
		ObjectMeta: metav1.ObjectMeta{Name: restarterapi.WebhookConfigurationName},
		Webhooks: []admissionregistrationv1.MutatingWebhook{
			{
				Name: restarterapi.WebhookConfigurationName,
				ClientConfig: admissionregistrationv1.WebhookClientConfig{
					Service: &admissionregistrationv1.ServiceReference{
						Namespace: cfg.OperatorNamespace,
						Name:      cfg.OperatorServiceName,
						Path:      &servicePath,
					},
					CABundle: cfg.CABundle,
				},
				Rules: []admissionregistrationv1.RuleWithOperations{
					{
						Operations: []admissionregistrationv1.OperationType{admissionregistrationv1.Create},
						Rule: admissionregistrationv1.Rule{
							APIGroups:   []string{"apps"},
							APIVersions: []string{"v1"},
							Resources:   []string{"statefulsets"},
							Scope:       &scope,
						},
					},
				},
				ObjectSelector: &metav1.LabelSelector{
					MatchLabels: map[string]string{restarterapi.EnabledLabel: restarterapi.EnabledLabelValue},
				},
				FailurePolicy:           &failurePolicy,
				SideEffects:             &sideEffects,
				ReinvocationPolicy:      &reinvocationPolicy,
				AdmissionReviewVersions: []string{"v1"},
			},
		},
	}

	existing := &admissionregistrationv1.MutatingWebhookConfiguration{}
	err := c.Get(ctx, client.ObjectKey{Name: restarterapi.WebhookConfigurationName}, existing)
	if apierrors.IsNotFound(err) {
		return c.Create(ctx, &desired)
	}
	if err != nil {
		return err
	}

	existing.Webhooks = desired.Webhooks
	return c.Update(ctx, existing)
}
