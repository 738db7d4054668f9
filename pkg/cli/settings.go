// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"strings"

	"github.com/mppdb/mppdb/pkg/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings [prefix]",
	Short: "list the settings and their current values",
	Long: `
List every registered setting, or those whose key starts with prefix, with
its type, class and current value. Values reflect --settings.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettings,
}

var settingTypes = map[string]string{
	"b": "bool",
	"e": "enumeration",
	"f": "float",
	"i": "integer",
	"s": "string",
	"z": "byte size",
}

func runSettings(cmd *cobra.Command, args []string) error {
	var prefix string
	if len(args) > 0 {
		prefix = args[0]
	}
	var rows [][]string
	for _, key := range settings.Keys() {
		if !strings.HasPrefix(string(key), prefix) {
			continue
		}
		s, _ := settings.Lookup(key)
		typ, ok := settingTypes[s.Typ()]
		if !ok {
			typ = s.Typ()
		}
		rows = append(rows, []string{
			string(key), typ, s.Class().String(), s.String(cliCtx.sv), s.Description(),
		})
	}
	return printTable(cmd.OutOrStdout(), []string{"key", "type", "class", "value", "description"}, rows)
}
