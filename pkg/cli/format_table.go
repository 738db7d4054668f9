// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mppdb/mppdb/pkg/util"
	"github.com/olekukonko/tablewriter"
)

// printTable writes rows under the header cols in the format chosen with
// --format, followed by the row count.
func printTable(w io.Writer, cols []string, rows [][]string) error {
	switch cliCtx.tableFormat {
	case "tsv":
		fmt.Fprintf(w, "%d row%s\n", len(rows), util.Pluralize(int64(len(rows))))
		csvWriter := csv.NewWriter(w)
		csvWriter.Comma = '\t'
		if err := csvWriter.Write(cols); err != nil {
			return err
		}
		return csvWriter.WriteAll(rows)

	default:
		table := tablewriter.NewWriter(w)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.SetHeader(cols)
		for _, row := range rows {
			for i, r := range row {
				row[i] = expandTabsAndNewLines(r)
			}
			table.Append(row)
		}
		table.Render()
		fmt.Fprintf(w, "(%d row%s)\n", len(rows), util.Pluralize(int64(len(rows))))
		return nil
	}
}

// expandTabsAndNewLines keeps control characters of a value from breaking
// the table layout.
func expandTabsAndNewLines(s string) string {
	return strings.NewReplacer("\t", "  ", "\n", "␤", "\r", "␍").Replace(s)
}
