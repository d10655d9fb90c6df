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

package cli

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/stackabletech/restarter/internal/delayed"
	"github.com/stackabletech/restarter/internal/events"
	"github.com/stackabletech/restarter/internal/podexpiry"
	"github.com/stackabletech/restarter/internal/reflector"
	"github.com/stackabletech/restarter/internal/statefulset"
	restarterwebhook "github.com/stackabletech/restarter/internal/webhook"
)

// consoleLogEnv and fileLogEnv are the logging environment variables
// threaded into zap.Options; they are read directly, and no zap flags are
// bound. consoleLogEnv selects zap's production mode when set to "info" or
// "warn" and development mode otherwise; fileLogEnv names a directory whose
// restarter.log file then receives the log output.
const (
	consoleLogEnv = "RESTARTER_LOG"
	fileLogEnv    = "RESTARTER_LOG_DIRECTORY"
)

type runOptions struct {
	watchNamespace           string
	disableWebhook           bool
	operatorNamespace        string
	operatorServiceName      string
	webhookServicePath       string
	webhookCABundlePath      string
	webhookCertPath          string
	webhookCertName          string
	webhookCertKey           string
	metricsAddr              string
	probeAddr                string
	enableHTTP2              bool
	eventRecorderConcurrency int
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the restarter controller manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManager(ctrl.SetupSignalHandler(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.watchNamespace, "watch-namespace", envOrDefault("WATCH_NAMESPACE", ""),
		"Restrict all watches to this namespace; cluster-wide if unset. Env: WATCH_NAMESPACE.")
	flags.BoolVar(&opts.disableWebhook, "disable-restarter-mutating-webhook", envOrDefaultBool("DISABLE_RESTARTER_MUTATING_WEBHOOK", false),
		"Skip webhook registration and serving; run in reflector-only mode. Env: DISABLE_RESTARTER_MUTATING_WEBHOOK.")
	flags.StringVar(&opts.operatorNamespace, "operator-namespace", envOrDefault("OPERATOR_NAMESPACE", ""),
		"Namespace this operator's Service runs in; used to populate the webhook client-config.")
	flags.StringVar(&opts.operatorServiceName, "operator-service-name", envOrDefault("OPERATOR_SERVICE_NAME", "restarter"),
		"Name of the Service fronting this operator's webhook server.")
	flags.StringVar(&opts.webhookServicePath, "webhook-service-path", "", "Path segment of the webhook Service the MutatingWebhookConfiguration should target.")
	flags.StringVar(&opts.webhookCABundlePath, "webhook-ca-bundle-path", "", "Path to a PEM CA bundle to embed in the MutatingWebhookConfiguration's client-config.")
	flags.StringVar(&opts.webhookCertPath, "webhook-cert-path", "", "Directory containing the webhook server's TLS certificate.")
	flags.StringVar(&opts.webhookCertName, "webhook-cert-name", "tls.crt", "Name of the webhook certificate file.")
	flags.StringVar(&opts.webhookCertKey, "webhook-cert-key", "tls.key", "Name of the webhook key file.")
	flags.StringVar(&opts.metricsAddr, "metrics-bind-address", "0", "Address the metrics endpoint binds to, or 0 to disable.")
	flags.StringVar(&opts.probeAddr, "health-probe-bind-address", ":8081", "Address the health probe endpoint binds to.")
	flags.BoolVar(&opts.enableHTTP2, "enable-http2", false, "Enable HTTP/2 for the webhook server (disabled by default, see the Stream Cancellation/Rapid Reset CVEs).")
	flags.IntVar(&opts.eventRecorderConcurrency, "event-recorder-concurrency", 0, "Bound on in-flight Event deliveries; 0 uses the built-in default.")

	return cmd
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v == "1" || v == "true"
}

func runManager(ctx context.Context, opts *runOptions) error {
	zapOpts := zap.Options{Development: envOrDefault(consoleLogEnv, "") != "info" && envOrDefault(consoleLogEnv, "") != "warn"}
	if dir := envOrDefault(fileLogEnv, ""); dir != "" {
		logFile, err := os.OpenFile(fmt.Sprintf("%s/restarter.log", dir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			zapOpts.DestWriter = logFile
		}
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
	setupLog := ctrl.Log.WithName("setup")

	runtimeScheme := newScheme()

	disableHTTP2 := func(c *tls.Config) {
		setupLog.Info("disabling http/2")
		c.NextProtos = []string{"http/1.1"}
	}
	var tlsOpts []func(*tls.Config)
	if !opts.enableHTTP2 {
		tlsOpts = append(tlsOpts, disableHTTP2)
	}

	webhookServerOptions := webhook.Options{TLSOpts: tlsOpts}
	if opts.webhookCertPath != "" {
		webhookServerOptions.CertDir = opts.webhookCertPath
		webhookServerOptions.CertName = opts.webhookCertName
		webhookServerOptions.KeyName = opts.webhookCertKey
	}

	mgrOpts := ctrl.Options{
		Scheme:                 runtimeScheme,
		HealthProbeBindAddress: opts.probeAddr,
		Metrics:                metricsserver.Options{BindAddress: opts.metricsAddr},
		WebhookServer:          webhook.NewServer(webhookServerOptions),
	}
	if opts.watchNamespace != "" {
		mgrOpts.Cache = cache.Options{
			DefaultNamespaces: map[string]cache.Config{
				opts.watchNamespace: {},
			},
		}
		setupLog.Info("restricting watches to namespace", "namespace", opts.watchNamespace)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), mgrOpts)
	if err != nil {
		return fmt.Errorf("unable to start manager: %w", err)
	}

	caches := reflector.NewCaches()
	index := reflector.NewStatefulSetIndex()
	cachesWriter, cachesReader := delayed.New[*reflector.Caches]()

	recorder := events.New(mgr.GetEventRecorderFor("restarter"), opts.eventRecorderConcurrency)

	stsReconciler := &statefulset.Reconciler{
		Client:   mgr.GetClient(),
		Caches:   caches,
		Index:    index,
		Recorder: recorder,
	}
	if err := stsReconciler.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create statefulset-restarter controller: %w", err)
	}

	expiryReconciler := &podexpiry.Reconciler{
		Client:   mgr.GetClient(),
		Recorder: recorder,
	}
	if err := expiryReconciler.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create pod-expiry-evictor controller: %w", err)
	}

	if opts.disableWebhook {
		setupLog.Info("webhook disabled, running in reflector-only mode")
		cachesWriter.Drop(fmt.Errorf("webhook disabled: %w", delayed.ErrInitializerDropped))
	} else {
		decoder := admission.NewDecoder(runtimeScheme)
		mutator := &restarterwebhook.StatefulSetMutator{
			CachesReader: cachesReader,
			Decoder:      decoder,
		}
		mgr.GetWebhookServer().Register(restarterwebhook.Path, &webhook.Admission{Handler: mutator})

		registrationConfig := restarterwebhook.RegistrationConfig{
			OperatorNamespace:   opts.operatorNamespace,
			OperatorServiceName: opts.operatorServiceName,
			ServicePath:         opts.webhookServicePath,
			CABundle:            readCABundle(setupLog, opts.webhookCABundlePath),
		}

		go func() {
			if !mgr.GetCache().WaitForCacheSync(ctx) {
				return
			}
			// the manager's informers have completed their initial sync;
			// the statefulset reconciler's runnable marks both referent
			// caches initialised on the same condition, so publish the handle.
			cachesWriter.Init(caches)
			if err := restarterwebhook.EnsureMutatingWebhookConfiguration(ctx, mgr.GetClient(), registrationConfig); err != nil {
				setupLog.Error(err, "unable to register MutatingWebhookConfiguration")
			}
		}()
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up health check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up ready check: %w", err)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("problem running manager: %w", err)
	}
	return nil
}

func readCABundle(logger logr.Logger, path string) []byte {
	if path == "" {
		return nil
	}
	bundle, err := os.ReadFile(path)
	if err != nil {
		logger.Error(err, "unable to read webhook CA bundle", "path", path)
		return nil
	}
	return bundle
}

func newScheme() *runtime.Scheme {
	s := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(s))
	utilruntime.Must(corev1.AddToScheme(s))
	return s
}
