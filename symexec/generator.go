package symexec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"go/format"
	"io"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"slava0135/symevm/machine"
)

type reportEntry struct {
	Calldata   string   `yaml:"calldata"`
	Status     string   `yaml:"status"`
	Predicates []string `yaml:"predicates,omitempty"`
	Branches   []uint64 `yaml:"branches,flow,omitempty"`
}

type report struct {
	Paths     int           `yaml:"paths"`
	Testcases []reportEntry `yaml:"testcases"`
}

// WriteReport writes testcases as a YAML document.
func WriteReport(w io.Writer, testcases []Testcase) error {
	r := report{Paths: len(testcases), Testcases: make([]reportEntry, 0, len(testcases))}
	for _, tc := range testcases {
		entry := reportEntry{
			Calldata: hex.EncodeToString(tc.Calldata),
			Status:   tc.Status(),
			Branches: tc.Branches,
		}
		for _, p := range tc.Predicates {
			entry.Predicates = append(entry.Predicates, p.String())
		}
		r.Testcases = append(r.Testcases, entry)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&r); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrap(enc.Close(), "encode report")
}

const generatedHeader = `// Code generated by symevm. DO NOT EDIT.

package %s
`

const testPrelude = `
import (
	"encoding/hex"
	"testing"

	"slava0135/symevm/machine"
)

func status(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

`

// replayable reports whether a concrete run without a cost model ends the
// same way as the symbolic run did.
func replayable(tc Testcase) bool {
	return !errors.Is(tc.Err, machine.ErrSymbolicOperand) && !errors.Is(tc.Err, machine.ErrOutOfGas)
}

// GenerateTests writes a Go test file that replays every replayable testcase
// on the concrete machine and checks it ends the same way. Without any
// replayable testcase the file holds only the package clause.
func GenerateTests(w io.Writer, pkg, name string, code []byte, testcases []Testcase) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, generatedHeader, pkg)
	if slices.ContainsFunc(testcases, replayable) {
		b.WriteString(testPrelude)
		fmt.Fprintf(&b, "var %sCode, _ = hex.DecodeString(%q)\n\n", name, hex.EncodeToString(code))
	}
	n := 0
	for _, tc := range testcases {
		if !replayable(tc) {
			continue
		}
		n++
		fmt.Fprintf(&b, "func Test_%s_%d(t *testing.T) {\n", name, n)
		if len(tc.Predicates) > 0 {
			fmt.Fprintf(&b, "\t// %s\n", strings.ReplaceAll(tc.PathKey(), "\n", " "))
		}
		fmt.Fprintf(&b, "\tcalldata, _ := hex.DecodeString(%q)\n", hex.EncodeToString(tc.Calldata))
		fmt.Fprintf(&b, "\tgot := status(machine.NewConcrete(%sCode, calldata).Run())\n", name)
		fmt.Fprintf(&b, "\twant := %q\n", tc.Status())
		b.WriteString("\tif got != want {\n")
		b.WriteString("\t\tt.Errorf(\"run(%x) = %v; want %v\", calldata, got, want)\n")
		b.WriteString("\t}\n}\n\n")
	}
	src, err := format.Source(b.Bytes())
	if err != nil {
		return errors.Wrap(err, "format generated tests")
	}
	_, err = w.Write(src)
	return errors.Wrap(err, "write generated tests")
}
