package codegen

import (
	"bytes"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/tangled-dice/dicejvm/internal/analyzer"
	"github.com/tangled-dice/dicejvm/pkg/classfile"
	"github.com/tangled-dice/dicejvm/pkg/vm"
)

// compileWriteReadExecute drives the full pipeline spec.md §8 scenarios 5
// and 6 describe: compile a dice expression, write it to a .class file,
// read that file back, and execute the result.
func compileWriteReadExecute(t *testing.T, expr, className string) (stdout, stderr string) {
	t.Helper()

	a, err := analyzer.New(expr)
	if err != nil {
		t.Fatalf("analyzer.New(%q): %v", expr, err)
	}
	prog, err := a.Analyze()
	if err != nil {
		t.Fatalf("Analyze(%q): %v", expr, err)
	}

	cf, err := GenerateClass(prog, className)
	if err != nil {
		t.Fatalf("GenerateClass(%q): %v", expr, err)
	}

	var classBytes bytes.Buffer
	if err := classfile.Write(&classBytes, cf); err != nil {
		t.Fatalf("Write(%q): %v", expr, err)
	}

	parsed, warnings, err := classfile.Parse(bytes.NewReader(classBytes.Bytes()))
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Parse(%q): unexpected warnings: %v", expr, warnings)
	}
	if parsed.MainMethod == nil {
		t.Fatalf("Parse(%q): no main method in round-tripped class", expr)
	}

	var outBuf, errBuf bytes.Buffer
	machine := vm.New(parsed, &outBuf, &errBuf, rand.New(rand.NewSource(1)))
	if _, _, err := machine.ExecuteMain(); err != nil {
		t.Fatalf("ExecuteMain(%q): %v", expr, err)
	}

	return outBuf.String(), errBuf.String()
}

// TestPipelineSingleDieRoll is spec.md §8 scenario 5: compiling "1d6",
// writing it to a .class file, reading and executing that file, produces
// exactly one integer in {1..6} on stdout and nothing on stderr.
func TestPipelineSingleDieRoll(t *testing.T) {
	stdout, stderr := compileWriteReadExecute(t, "1d6", "DiceRoll")

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("stdout lines: got %d (%q), want 1", len(lines), stdout)
	}
	roll, err := strconv.Atoi(lines[0])
	if err != nil {
		t.Fatalf("stdout line %q is not an integer: %v", lines[0], err)
	}
	if roll < 1 || roll > 6 {
		t.Errorf("roll: got %d, want in [1,6]", roll)
	}
	if stderr != "" {
		t.Errorf("stderr: got %q, want empty", stderr)
	}
}

// TestPipelineMultipleDiceRoll is spec.md §8 scenario 6: compiling "3d2",
// then executing it, produces three integers each in {1,2} on stdout,
// followed by exactly "Total: <sum>\n" on stderr where <sum> equals the
// sum of the three stdout lines.
func TestPipelineMultipleDiceRoll(t *testing.T) {
	stdout, stderr := compileWriteReadExecute(t, "3d2", "DiceRoll")

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("stdout lines: got %d (%q), want 3", len(lines), stdout)
	}
	sum := 0
	for _, line := range lines {
		roll, err := strconv.Atoi(line)
		if err != nil {
			t.Fatalf("stdout line %q is not an integer: %v", line, err)
		}
		if roll < 1 || roll > 2 {
			t.Errorf("roll: got %d, want in [1,2]", roll)
		}
		sum += roll
	}

	want := "Total: " + strconv.Itoa(sum) + "\n"
	if stderr != want {
		t.Errorf("stderr: got %q, want %q", stderr, want)
	}
}
