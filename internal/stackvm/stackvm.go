// Package stackvm is the legacy pure-dice interpreter: a tiny stack
// machine with three locals (count, faces, total) and a fixed loop shape,
// compiled directly from a dice AST rather than from a class file. It
// exists only so the CLI's default, non-JVM run path has real behavior.
package stackvm

import (
	"fmt"
	"math/rand"

	"github.com/tangled-dice/dicejvm/internal/analyzer"
	"github.com/tangled-dice/dicejvm/internal/ast"
)

type opcode int

const (
	opLdcI4 opcode = iota
	opStloc0
	opStloc1
	opStloc2
	opLdloc0
	opLdloc1
	opLdloc2
	opPop
	opDup
	opAdd
	opSub
	opCgt
	opBr
	opBrfalse
	opWriteLine
	opWriteStrErr
	opWriteLineErr
	opRandom
)

type instruction struct {
	op     opcode
	operand int32
	str    string
}

// compile lowers a validated dice program into the fixed loop shape the
// original stack VM emits: init locals, loop while count > 0 rolling and
// accumulating, optional "Total: " summary on stderr for multi-die rolls.
func compile(prog *ast.Program) ([]instruction, error) {
	if prog.Statement == nil {
		return nil, fmt.Errorf("empty program")
	}
	expr := prog.Statement.Expr
	count, faces := int32(expr.Count), int32(expr.Faces)

	var code []instruction
	emit := func(i instruction) int { code = append(code, i); return len(code) - 1 }

	emit(instruction{op: opLdcI4, operand: count})
	emit(instruction{op: opStloc0})
	emit(instruction{op: opLdcI4, operand: faces})
	emit(instruction{op: opStloc1})
	emit(instruction{op: opLdcI4, operand: 0})
	emit(instruction{op: opStloc2})

	loopStart := emit(instruction{op: opLdloc0})
	emit(instruction{op: opLdcI4, operand: 0})
	emit(instruction{op: opCgt})
	brfalseIdx := emit(instruction{op: opBrfalse})

	emit(instruction{op: opLdloc1})
	emit(instruction{op: opRandom})
	emit(instruction{op: opDup})
	emit(instruction{op: opWriteLine})
	emit(instruction{op: opLdloc2})
	emit(instruction{op: opAdd})
	emit(instruction{op: opStloc2})
	emit(instruction{op: opLdloc0})
	emit(instruction{op: opLdcI4, operand: 1})
	emit(instruction{op: opSub})
	emit(instruction{op: opStloc0})
	brIdx := emit(instruction{op: opBr})
	code[brIdx].operand = int32(loopStart - brIdx)

	loopExit := len(code)
	if count > 1 {
		emit(instruction{op: opWriteStrErr, str: "Total: "})
		emit(instruction{op: opLdloc2})
		emit(instruction{op: opWriteLineErr})
	}
	code[brfalseIdx].operand = int32(loopExit - brfalseIdx)

	return code, nil
}

// VM is the legacy stack interpreter's runtime state.
type VM struct {
	Stdout, Stderr interface{ Write([]byte) (int, error) }
	stack          []int32
	locals         [3]int32
	rng            *rand.Rand
}

// New builds a VM writing to the given stdout/stderr-like sinks.
func New(stdout, stderr interface{ Write([]byte) (int, error) }, seed int64) *VM {
	return &VM{Stdout: stdout, Stderr: stderr, rng: rand.New(rand.NewSource(seed))}
}

func (vm *VM) pop() (int32, error) {
	if len(vm.stack) == 0 {
		return 0, fmt.Errorf("invalid stack state")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) push(v int32) { vm.stack = append(vm.stack, v) }

// Run parses, analyzes, compiles, and executes a dice expression such as
// "3d6", writing roll results to Stdout and a summary line to Stderr when
// more than one die is rolled.
func (vm *VM) Run(source string) error {
	a, err := analyzer.New(source)
	if err != nil {
		return err
	}
	prog, err := a.Analyze()
	if err != nil {
		return err
	}
	code, err := compile(prog)
	if err != nil {
		return err
	}

	pc := 0
	for pc < len(code) {
		jump, err := vm.step(&code[pc])
		if err != nil {
			return err
		}
		if jump == 0 {
			pc++
			continue
		}
		next := pc + int(jump)
		if next < 0 || next > len(code) {
			return fmt.Errorf("invalid stack state")
		}
		pc = next
	}
	return nil
}

func (vm *VM) step(ins *instruction) (int32, error) {
	switch ins.op {
	case opLdcI4:
		vm.push(ins.operand)
	case opStloc0:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.locals[0] = v
	case opStloc1:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.locals[1] = v
	case opStloc2:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.locals[2] = v
	case opLdloc0:
		vm.push(vm.locals[0])
	case opLdloc1:
		vm.push(vm.locals[1])
	case opLdloc2:
		vm.push(vm.locals[2])
	case opPop:
		if _, err := vm.pop(); err != nil {
			return 0, err
		}
	case opDup:
		if len(vm.stack) == 0 {
			return 0, fmt.Errorf("invalid stack state")
		}
		vm.push(vm.stack[len(vm.stack)-1])
	case opAdd:
		b, err := vm.pop()
		if err != nil {
			return 0, err
		}
		a, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.push(a + b)
	case opSub:
		b, err := vm.pop()
		if err != nil {
			return 0, err
		}
		a, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.push(a - b)
	case opCgt:
		b, err := vm.pop()
		if err != nil {
			return 0, err
		}
		a, err := vm.pop()
		if err != nil {
			return 0, err
		}
		if a > b {
			vm.push(1)
		} else {
			vm.push(0)
		}
	case opBr:
		return ins.operand, nil
	case opBrfalse:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		if v == 0 {
			return ins.operand, nil
		}
	case opWriteLine:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(vm.Stdout, "%d\n", v)
	case opWriteStrErr:
		fmt.Fprint(vm.Stderr, ins.str)
	case opWriteLineErr:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(vm.Stderr, "%d\n", v)
	case opRandom:
		max, err := vm.pop()
		if err != nil {
			return 0, err
		}
		if max == 0 {
			vm.push(0)
		} else {
			vm.push(int32(vm.rng.Intn(int(max))) + 1)
		}
	default:
		return 0, fmt.Errorf("invalid opcode")
	}
	return 0, nil
}
