// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

// optionsFromArgs turns the arguments of a datadriven command into the
// options of a statement.
func optionsFromArgs(args []datadriven.CmdArg) (raw []Option, noEOL bool) {
	for _, arg := range args {
		if arg.Key == "noeol" {
			noEOL = true
			continue
		}
		o := Option{Name: arg.Key}
		if len(arg.Vals) > 0 {
			o.HasValue = true
			switch {
			case arg.Vals[0] == "*":
				o.Star = true
			case strings.HasPrefix(arg.Key, "force_"):
				o.List = arg.Vals
			default:
				o.Value = arg.Vals[0]
			}
		}
		raw = append(raw, o)
	}
	return raw, noEOL
}

func TestParseOptions(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	datadriven.RunTest(t, "testdata/options", func(t *testing.T, d *datadriven.TestData) string {
		dir := From
		switch d.Cmd {
		case "options":
		case "options-to":
			dir = To
		default:
			d.Fatalf(t, "unknown command %s", d.Cmd)
		}
		raw, _ := optionsFromArgs(d.CmdArgs)
		opts, err := ParseOptions(dir, raw)
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		// The rendered options parse back to the same thing.
		var again []Option
		for _, s := range strings.Fields(opts.String()) {
			again = append(again, unquoteOption(ParseOption(s)))
		}
		opts2, err := ParseOptions(dir, again)
		require.NoError(t, err)
		require.Equal(t, opts.String(), opts2.String())
		return opts.String() + "\n"
	})
}

// unquoteOption strips the Go quoting String uses for single characters.
func unquoteOption(o Option) Option {
	if v := o.Value; len(v) >= 2 && v[0] == '"' {
		if s, err := strconv.Unquote(v); err == nil {
			o.Value = s
		}
	}
	return o
}

func TestTokenize(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	eols := strings.NewReplacer("<CR>", "\r", "<LF>", "\n")
	datadriven.RunTest(t, "testdata/tokenize", func(t *testing.T, d *datadriven.TestData) string {
		raw, noEOL := optionsFromArgs(d.CmdArgs)
		opts, err := ParseOptions(From, raw)
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		input := eols.Replace(d.Input)
		if !noEOL {
			input += "\n"
		}
		lr := newLineReader(strings.NewReader(input), opts)
		split := fieldSplitter{opts: opts}
		var b strings.Builder
		for {
			line, ok, err := lr.next()
			if err != nil {
				fmt.Fprintf(&b, "error: %v\n", err)
				break
			}
			if !ok {
				break
			}
			fields, _, _, err := split.split(line, 0, 0)
			if err != nil {
				fmt.Fprintf(&b, "%d: error: %v\n", lr.lineNo, err)
				continue
			}
			fmt.Fprintf(&b, "%d:", lr.lineNo)
			for _, f := range fields {
				if f.null {
					b.WriteString(" NULL")
				} else {
					fmt.Fprintf(&b, " %q", f.val)
				}
			}
			b.WriteByte('\n')
		}
		return b.String()
	})
}

func TestSplitResume(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	opts, err := ParseOptions(From, []Option{{Name: "delimiter", Value: "|", HasValue: true}})
	require.NoError(t, err)

	testCases := []struct {
		line     string
		max      int
		prefix   []string
		cursor   int
		atDelim  bool
		residual []string
	}{
		{line: "1|2|3", max: 2, prefix: []string{"1", "2"}, cursor: 4, atDelim: true, residual: []string{"3"}},
		{line: "1|2", max: 2, prefix: []string{"1", "2"}, cursor: 3},
		{line: "1|2|", max: 2, prefix: []string{"1", "2"}, cursor: 4, atDelim: true, residual: []string{""}},
		{line: "1", max: 2, prefix: []string{"1"}, cursor: 1},
		{line: `a\|b|c|d`, max: 1, prefix: []string{"a|b"}, cursor: 5, atDelim: true, residual: []string{"c", "d"}},
	}
	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			s := fieldSplitter{opts: opts}
			fields, cursor, atDelim, err := s.split([]byte(tc.line), 0, tc.max)
			require.NoError(t, err)
			var got []string
			for _, f := range fields {
				got = append(got, string(f.val))
			}
			require.Equal(t, tc.prefix, got)
			require.Equal(t, tc.cursor, cursor)
			require.Equal(t, tc.atDelim, atDelim)
			if !atDelim {
				return
			}
			fields, _, _, err = s.split([]byte(tc.line), cursor, 0)
			require.NoError(t, err)
			got = got[:0]
			for _, f := range fields {
				got = append(got, string(f.val))
			}
			require.Equal(t, tc.residual, got)
		})
	}
}
