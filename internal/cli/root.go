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

// Package cli builds the restarter command line, split into a crd and a run
// subcommand, following a cobra root/subcommand dispatch pattern rather than
// a single-binary flag.Parse, since this operator has two distinct modes.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the restarter root command and its subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "restarter",
		Short: "Stamps referent revisions into opted-in StatefulSets and evicts Pods past their credential deadline",
		Long: "restarter reflects ConfigMap/Secret revisions into opted-in StatefulSet Pod " +
			"templates, mutates newly created opted-in StatefulSets the same way via an " +
			"admission webhook, and evicts Pods whose credential-expiry deadlines have passed.",
		SilenceUsage: true,
	}

	root.AddCommand(newCrdCommand())
	root.AddCommand(newRunCommand())

	return root
}
