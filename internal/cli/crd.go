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
	"github.com/spf13/cobra"
)

// newCrdCommand builds the crd subcommand. Other Stackable operators use
// this subcommand to print their CustomResourceDefinitions; this operator
// only ever watches built-in StatefulSet/Pod/ConfigMap/Secret kinds and
// owns no CRD of its own, so it says so rather than silently printing
// nothing.
func newCrdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crd",
		Short: "Print this operator's CustomResourceDefinitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("restarter defines no CustomResourceDefinitions; it watches only built-in StatefulSet, Pod, ConfigMap, and Secret kinds.")
			return nil
		},
	}
}
