package vm

import (
	"github.com/tangled-dice/dicejvm/pkg/classfile"
	"github.com/tangled-dice/dicejvm/pkg/rtfault"
)

// Frame is a method activation record: a locals array sized to max_locals
// (SetLocal grows it on a store past its end), a growable operand stack, a
// program counter, the bytecode it steps through, and a pointer into the
// shared constant pool.
type Frame struct {
	Locals       []Value
	OperandStack []Value
	PC           int
	Bytecode     []classfile.Instruction
	Pool         *classfile.ConstantPool
}

// NewFrame allocates a frame with maxLocals zero-valued Int locals and an
// empty operand stack.
func NewFrame(maxLocals uint16, bytecode []classfile.Instruction, pool *classfile.ConstantPool) *Frame {
	locals := make([]Value, maxLocals)
	for i := range locals {
		locals[i] = Int(0)
	}
	return &Frame{Locals: locals, Bytecode: bytecode, Pool: pool}
}

func (f *Frame) Push(v Value) { f.OperandStack = append(f.OperandStack, v) }

func (f *Frame) Pop() (Value, error) {
	if len(f.OperandStack) == 0 {
		return Value{}, rtfault.New(rtfault.StackUnderflow)
	}
	v := f.OperandStack[len(f.OperandStack)-1]
	f.OperandStack = f.OperandStack[:len(f.OperandStack)-1]
	return v, nil
}

// GetLocal returns the value at index. An index outside the current locals
// array is an InvalidStackState fault rather than a panic, which guards
// against a corrupt class file; slots created by SetLocal's growth already
// hold their type-appropriate zero.
func (f *Frame) GetLocal(index int) (Value, error) {
	if index < 0 || index >= len(f.Locals) {
		return Value{}, rtfault.New(rtfault.InvalidStackState)
	}
	return f.Locals[index], nil
}

// SetLocal stores v at index, growing Locals if index is beyond its
// current length. Newly-created intermediate slots are zeroed to match
// v's own kind (Int(0), Long(0), Double(0.0), or Reference(None)), per
// spec §4.6 — the store instruction's type, not always Int(0).
func (f *Frame) SetLocal(index int, v Value) {
	if index >= len(f.Locals) {
		grown := make([]Value, index+1)
		copy(grown, f.Locals)
		for i := len(f.Locals); i < len(grown); i++ {
			grown[i] = ZeroFor(v.Kind)
		}
		f.Locals = grown
	}
	f.Locals[index] = v
}
