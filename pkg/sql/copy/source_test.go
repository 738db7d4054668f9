// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package copy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgcode"
	"github.com/mppdb/mppdb/pkg/sql/pgwire/pgerror"
	"github.com/mppdb/mppdb/pkg/util/leaktest"
	"github.com/mppdb/mppdb/pkg/util/log"
	"github.com/stretchr/testify/require"
)

func TestCompressedFiles(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	data := strings.Repeat("1|some text that compresses well|2\n", 500)
	for _, ext := range []string{".txt", ".gz", ".zst", ".lz4", ".sz"} {
		t.Run(ext, func(t *testing.T) {
			loc := Location{Name: filepath.Join(t.TempDir(), "data"+ext)}
			w, err := OpenSink(ctx, loc)
			require.NoError(t, err)
			_, err = io.WriteString(w, data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			raw, err := os.ReadFile(loc.Name)
			require.NoError(t, err)
			if ext == ".txt" {
				require.Equal(t, data, string(raw))
			} else {
				require.Less(t, len(raw), len(data))
			}

			r, err := OpenSource(ctx, loc)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			require.Equal(t, data, string(got))
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := OpenSource(ctx, Location{Name: filepath.Join(t.TempDir(), "nope.gz")})
		require.Equal(t, pgcode.IOError, pgerror.GetPGCode(err))
		require.Contains(t, err.Error(), "could not open file")
	})
}

func TestProgram(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	ctx := context.Background()

	t.Run("read", func(t *testing.T) {
		r, err := OpenSource(ctx, Location{Name: "printf 'a\\nb\\n'", Program: true})
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		require.Equal(t, "a\nb\n", string(got))
	})

	t.Run("write", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out")
		w, err := OpenSink(ctx, Location{Name: "cat > " + out, Program: true})
		require.NoError(t, err)
		_, err = io.WriteString(w, "x|y\n")
		require.NoError(t, err)
		require.NoError(t, w.Close())
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		require.Equal(t, "x|y\n", string(got))
	})

	t.Run("failure", func(t *testing.T) {
		r, err := OpenSource(ctx, Location{Name: "echo partial; echo broken >&2; exit 3", Program: true})
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.Equal(t, "partial\n", string(got))
		err = r.Close()
		require.Equal(t, pgcode.ExternalRoutineException, pgerror.GetPGCode(err))
		details := strings.Join(errors.GetAllDetails(err), "\n")
		require.Contains(t, details, "exit code 3")
		require.Contains(t, details, "broken")
	})

	t.Run("stopped early", func(t *testing.T) {
		r, err := OpenSource(ctx, Location{Name: "yes", Program: true})
		require.NoError(t, err)
		buf := make([]byte, 16)
		_, err = io.ReadFull(r, buf)
		require.NoError(t, err)
		require.NoError(t, r.Close())
	})
}

func TestLocationForSegment(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	l, err := Location{Name: "/data/part<SEGID>.csv"}.ForSegment(2)
	require.NoError(t, err)
	require.Equal(t, "/data/part2.csv", l.Name)

	l, err = Location{Name: "gen --seg <SEGID> --of <SEGID>", Program: true}.ForSegment(1)
	require.NoError(t, err)
	require.Equal(t, `PROGRAM "gen --seg 1 --of 1"`, l.String())

	_, err = Location{Name: "/data/part.csv"}.ForSegment(0)
	require.Equal(t, pgcode.InvalidParameterValue, pgerror.GetPGCode(err))
}
