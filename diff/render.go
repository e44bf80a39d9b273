package diff

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
)

// RenderConflict produces literal <<<<<<< / ======= / >>>>>>> marker
// text for a Conflict MergeResult. content must be the MergeResult's
// Partial buffer (conflict offsets index into it, not into the
// three-way merge's original), and leftLabel/rightLabel name the two
// sides in the rendered markers.
func RenderConflict(content []byte, conflicts []ConflictPair, leftLabel, rightLabel string) ([]byte, error) {
	var out bytes.Buffer
	pos := uint32(0)
	for _, c := range conflicts {
		if c.Left.Start != c.Right.Start || c.Left.End != c.Right.End {
			return nil, errors.New("diff: conflict pair bounds mismatch")
		}
		if c.Left.Start < pos {
			return nil, errors.Newf("diff: conflicts out of order at byte %d", c.Left.Start)
		}
		out.Write(content[pos:c.Left.Start])

		fmt.Fprintf(&out, "<<<<<<< %s\n", leftLabel)
		ld, err := Decompress(c.Left.Compression, c.Left.Data)
		if err != nil {
			return nil, err
		}
		out.Write(ld)

		out.WriteString("=======\n")
		rd, err := Decompress(c.Right.Compression, c.Right.Data)
		if err != nil {
			return nil, err
		}
		out.Write(rd)

		fmt.Fprintf(&out, ">>>>>>> %s\n", rightLabel)
		pos = c.Left.End
	}
	out.Write(content[pos:])
	return out.Bytes(), nil
}
