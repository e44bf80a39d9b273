package sortedfile_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"

	"github.com/colin353/corestore/sortedfile"
)

// TestSortedFileDataDriven drives Builder/Reader through a fixture
// file: a "build" command takes one "key value" pair per line and
// produces a fresh SortedFile, and subsequent "get"/"range" commands
// query the most recently built file.
func TestSortedFileDataDriven(t *testing.T) {
	var reader *sortedfile.Reader

	datadriven.RunTest(t, "testdata/build", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "build":
			var buf bytes.Buffer
			b := sortedfile.NewBuilder(&buf)
			for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				fields := strings.Fields(line)
				if len(fields) != 2 {
					return fmt.Sprintf("error: malformed line %q", line)
				}
				if err := b.Push(fields[0], []byte(fields[1])); err != nil {
					return fmt.Sprintf("error: %v", err)
				}
			}
			require.NoError(t, b.Finish())
			data := buf.Bytes()
			r, err := sortedfile.Open(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			reader = r
			return "ok"

		case "get":
			key := d.CmdArgs[0].Vals[0]
			v, ok, err := reader.Get(key)
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			if !ok {
				return "not found"
			}
			return string(v)

		case "range":
			var spec, min, max string
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "spec":
					if len(arg.Vals) > 0 {
						spec = arg.Vals[0]
					}
				case "min":
					if len(arg.Vals) > 0 {
						min = arg.Vals[0]
					}
				case "max":
					if len(arg.Vals) > 0 {
						max = arg.Vals[0]
					}
				}
			}
			entries, err := reader.Range(spec, min, max)
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			keys := make([]string, len(entries))
			for i, e := range entries {
				keys[i] = e.Key
			}
			return strings.Join(keys, " ")

		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}
