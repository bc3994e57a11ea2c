// Package vm is the stack-based interpreter: the Value/Frame model, the
// symbolic resolver, and the fetch-decode-execute loop that executes a
// parsed or generated class file.
package vm

import (
	"io"
	"math"
	"math/rand"

	"github.com/tangled-dice/dicejvm/pkg/classfile"
	"github.com/tangled-dice/dicejvm/pkg/native"
	"github.com/tangled-dice/dicejvm/pkg/rtfault"
)

// MaxSteps is the hard per-invocation instruction ceiling, per spec §5/§7.
const MaxSteps = 100_000

// maxFrameDepth bounds call nesting so a runaway recursive user method
// faults instead of exhausting the host stack.
const maxFrameDepth = 1024

// VM is one interpreter instance: its heap, frame stack, step counter, and
// process-wide PRNG are all owned exclusively by it (spec §5).
type VM struct {
	Stdout io.Writer
	Stderr io.Writer
	Trace  func(format string, args ...interface{}) // nil unless -v

	class  *classfile.ClassFile
	heap   *Heap
	frames []*Frame
	steps  int
	rng    *rand.Rand
}

// New builds a VM bound to a single class, ready to execute its main
// method or any user method therein.
func New(class *classfile.ClassFile, stdout, stderr io.Writer, rng *rand.Rand) *VM {
	return &VM{class: class, Stdout: stdout, Stderr: stderr, heap: NewHeap(), rng: rng}
}

func (vm *VM) trace(format string, args ...interface{}) {
	if vm.Trace != nil {
		vm.Trace(format, args...)
	}
}

func (vm *VM) current() *Frame { return vm.frames[len(vm.frames)-1] }

// ExecuteMain runs the class's selected main method to completion.
func (vm *VM) ExecuteMain() (Value, bool, error) {
	if vm.class.MainMethod == nil {
		return Value{}, false, rtfault.New(rtfault.InvalidStackState)
	}
	return vm.ExecuteMethod(vm.class.MainMethod)
}

// ExecuteMethod pushes a fresh frame for m and runs until it returns,
// yielding the returned value (if any) or a fault.
func (vm *VM) ExecuteMethod(m *classfile.MethodInfo) (Value, bool, error) {
	frame := NewFrame(m.MaxLocals, m.Bytecode, vm.class.ConstantPool)
	vm.frames = append(vm.frames, frame)
	depth := len(vm.frames)

	for len(vm.frames) >= depth {
		if vm.steps >= MaxSteps {
			return Value{}, false, rtfault.New(rtfault.InvalidStackState)
		}
		vm.steps++

		f := vm.current()
		if f.PC == len(f.Bytecode) {
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) >= depth {
				continue
			}
			return Value{}, false, nil
		}
		if f.PC < 0 || f.PC > len(f.Bytecode) {
			return Value{}, false, rtfault.NewInvalidInstructionPointer(f.PC)
		}

		ret, hasRet, done, err := vm.step(f)
		if err != nil {
			return Value{}, false, err
		}
		if done {
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) < depth {
				return ret, hasRet, nil
			}
			if hasRet {
				vm.current().Push(ret)
			}
		}
	}
	return Value{}, false, nil
}

// step executes exactly one instruction of f, advancing its PC unless the
// instruction itself sets PC (branches) or the frame returns (done=true).
func (vm *VM) step(f *Frame) (ret Value, hasRet bool, done bool, err error) {
	in := f.Bytecode[f.PC]
	advance := true
	defer func() {
		if advance && !done {
			f.PC++
		}
	}()

	switch in.Op {
	case classfile.OpNop:

	case classfile.OpIconstM1:
		f.Push(Int(-1))
	case classfile.OpIconst0:
		f.Push(Int(0))
	case classfile.OpIconst1:
		f.Push(Int(1))
	case classfile.OpIconst2:
		f.Push(Int(2))
	case classfile.OpIconst3:
		f.Push(Int(3))
	case classfile.OpIconst4:
		f.Push(Int(4))
	case classfile.OpIconst5:
		f.Push(Int(5))
	case classfile.OpLconst0:
		f.Push(Long(0))
	case classfile.OpLconst1:
		f.Push(Long(1))
	case classfile.OpDconst0:
		f.Push(Double(0))
	case classfile.OpDconst1:
		f.Push(Double(1))
	case classfile.OpBipush:
		f.Push(Int(in.Imm))
	case classfile.OpSipush:
		f.Push(Int(in.Imm))

	case classfile.OpLdc:
		v, e := vm.loadConstant(f, uint16(in.Imm))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)
	case classfile.OpLdc2W:
		v, e := vm.loadConstant(f, uint16(in.Imm))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)

	case classfile.OpIload, classfile.OpLload, classfile.OpDload, classfile.OpAload:
		v, e := f.GetLocal(int(in.Imm))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)
	case classfile.OpIload0, classfile.OpIload1, classfile.OpIload2, classfile.OpIload3:
		v, e := f.GetLocal(int(in.Op - classfile.OpIload0))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)
	case classfile.OpLload0, classfile.OpLload1, classfile.OpLload2, classfile.OpLload3:
		v, e := f.GetLocal(int(in.Op - classfile.OpLload0))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)
	case classfile.OpDload0, classfile.OpDload1, classfile.OpDload2, classfile.OpDload3:
		v, e := f.GetLocal(int(in.Op - classfile.OpDload0))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)
	case classfile.OpAload0, classfile.OpAload1, classfile.OpAload2, classfile.OpAload3:
		v, e := f.GetLocal(int(in.Op - classfile.OpAload0))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)

	case classfile.OpIstore, classfile.OpLstore, classfile.OpDstore, classfile.OpAstore:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		f.SetLocal(int(in.Imm), v)
	case classfile.OpIstore0, classfile.OpIstore1, classfile.OpIstore2, classfile.OpIstore3:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		f.SetLocal(int(in.Op-classfile.OpIstore0), v)
	case classfile.OpLstore0, classfile.OpLstore1, classfile.OpLstore2, classfile.OpLstore3:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		f.SetLocal(int(in.Op-classfile.OpLstore0), v)
	case classfile.OpDstore0, classfile.OpDstore1, classfile.OpDstore2, classfile.OpDstore3:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		f.SetLocal(int(in.Op-classfile.OpDstore0), v)
	case classfile.OpAstore0, classfile.OpAstore1, classfile.OpAstore2, classfile.OpAstore3:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		f.SetLocal(int(in.Op-classfile.OpAstore0), v)

	case classfile.OpPop:
		if _, e := f.Pop(); e != nil {
			return Value{}, false, false, e
		}
	case classfile.OpDup:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)
		f.Push(v)
	case classfile.OpSwap:
		b, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		a, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(b)
		f.Push(a)

	case classfile.OpIadd, classfile.OpIsub, classfile.OpImul, classfile.OpIdiv, classfile.OpIrem:
		if e := vm.intBinOp(f, in.Op); e != nil {
			return Value{}, false, false, e
		}
	case classfile.OpDadd, classfile.OpDsub, classfile.OpDmul, classfile.OpDdiv:
		if e := vm.doubleBinOp(f, in.Op); e != nil {
			return Value{}, false, false, e
		}

	case classfile.OpI2d:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		iv, e := v.AsInt()
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(Double(float64(iv)))
	case classfile.OpD2i:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		dv, e := v.AsDouble()
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(Int(int32(math.Trunc(dv))))

	case classfile.OpIfeq, classfile.OpIfne, classfile.OpIflt, classfile.OpIfge, classfile.OpIfgt, classfile.OpIfle:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		iv, e := v.AsInt()
		if e != nil {
			return Value{}, false, false, e
		}
		if branchTaken(in.Op, iv) {
			f.PC = int(in.Imm)
			advance = false
		}
	case classfile.OpGoto:
		f.PC = int(in.Imm)
		advance = false

	case classfile.OpGetstatic:
		v, e := vm.getstatic(uint16(in.Imm))
		if e != nil {
			return Value{}, false, false, e
		}
		f.Push(v)

	case classfile.OpInvokestatic:
		r, e := vm.invokestatic(f, uint16(in.Imm))
		if e != nil {
			return Value{}, false, false, e
		}
		if r != nil {
			f.Push(*r)
		}
	case classfile.OpInvokevirtual:
		r, e := vm.invokevirtual(f, uint16(in.Imm))
		if e != nil {
			return Value{}, false, false, e
		}
		if r != nil {
			f.Push(*r)
		}
	case classfile.OpInvokespecial:
		// Constructor call: pop the receiver, no other effect (spec §4.6).
		if _, e := f.Pop(); e != nil {
			return Value{}, false, false, e
		}
	case classfile.OpInvokedynamic:
		if _, e := f.Pop(); e != nil {
			return Value{}, false, false, e
		}
		f.Push(Reference(vm.heap.NewString("")))

	case classfile.OpNew:
		f.Push(Reference(vm.heap.NewObject(vm.classNameOrEmpty(uint16(in.Imm)))))

	case classfile.OpReturn:
		return Value{}, false, true, nil
	case classfile.OpIreturn:
		v, e := f.Pop()
		if e != nil {
			return Value{}, false, false, e
		}
		return v, true, true, nil

	default:
		return Value{}, false, false, rtfault.NewInvalidOpcode(byte(in.Op))
	}

	return Value{}, false, false, nil
}

func (vm *VM) classNameOrEmpty(classIndex uint16) string {
	name, err := vm.current().Pool.ClassName(classIndex)
	if err != nil {
		return ""
	}
	return name
}

func branchTaken(op classfile.Op, v int32) bool {
	switch op {
	case classfile.OpIfeq:
		return v == 0
	case classfile.OpIfne:
		return v != 0
	case classfile.OpIflt:
		return v < 0
	case classfile.OpIfge:
		return v >= 0
	case classfile.OpIfgt:
		return v > 0
	case classfile.OpIfle:
		return v <= 0
	default:
		return false
	}
}

func (vm *VM) intBinOp(f *Frame, op classfile.Op) error {
	b, err := f.Pop()
	if err != nil {
		return err
	}
	a, err := f.Pop()
	if err != nil {
		return err
	}
	av, err := a.AsInt()
	if err != nil {
		return err
	}
	bv, err := b.AsInt()
	if err != nil {
		return err
	}
	switch op {
	case classfile.OpIadd:
		f.Push(Int(av + bv))
	case classfile.OpIsub:
		f.Push(Int(av - bv))
	case classfile.OpImul:
		f.Push(Int(av * bv))
	case classfile.OpIdiv:
		if bv == 0 {
			return rtfault.New(rtfault.DivisionByZero)
		}
		f.Push(Int(av / bv))
	case classfile.OpIrem:
		if bv == 0 {
			return rtfault.New(rtfault.DivisionByZero)
		}
		f.Push(Int(av % bv))
	}
	return nil
}

func (vm *VM) doubleBinOp(f *Frame, op classfile.Op) error {
	b, err := f.Pop()
	if err != nil {
		return err
	}
	a, err := f.Pop()
	if err != nil {
		return err
	}
	av, err := a.AsDouble()
	if err != nil {
		return err
	}
	bv, err := b.AsDouble()
	if err != nil {
		return err
	}
	switch op {
	case classfile.OpDadd:
		f.Push(Double(av + bv))
	case classfile.OpDsub:
		f.Push(Double(av - bv))
	case classfile.OpDmul:
		f.Push(Double(av * bv))
	case classfile.OpDdiv:
		if bv == 0 {
			return rtfault.New(rtfault.DivisionByZero)
		}
		f.Push(Double(av / bv))
	}
	return nil
}

// loadConstant materializes a constant-pool entry for Ldc/Ldc2W; a String
// entry is interned onto the heap and its reference is pushed instead of
// the raw index, per spec §4.6.
func (vm *VM) loadConstant(f *Frame, index uint16) (Value, error) {
	entry, err := f.Pool.Entry(index)
	if err != nil {
		return Value{}, err
	}
	switch e := entry.(type) {
	case *classfile.ConstantInteger:
		return Int(e.Value), nil
	case *classfile.ConstantFloat:
		return Float(e.Value), nil
	case *classfile.ConstantLong:
		return Long(e.Value), nil
	case *classfile.ConstantDouble:
		return Double(e.Value), nil
	case *classfile.ConstantString:
		text, err := f.Pool.Utf8(e.StringIndex)
		if err != nil {
			return Value{}, err
		}
		return Reference(vm.heap.NewString(text)), nil
	default:
		return Value{}, rtfault.New(rtfault.InvalidStackState)
	}
}

func (vm *VM) getstatic(index uint16) (Value, error) {
	kind, err := ResolveStaticField(vm.current().Pool, index)
	if err != nil {
		return Value{}, err
	}
	switch kind {
	case FieldSystemOut:
		id := vm.heap.NewObject("java/io/PrintStream")
		obj, _ := vm.heap.Object(id)
		obj.Fields["is_stderr"] = Int(0)
		return Reference(id), nil
	case FieldSystemErr:
		id := vm.heap.NewObject("java/io/PrintStream")
		obj, _ := vm.heap.Object(id)
		obj.Fields["is_stderr"] = Int(1)
		return Reference(id), nil
	default:
		return Value{}, rtfault.New(rtfault.InvalidStackState)
	}
}

func (vm *VM) invokestatic(f *Frame, index uint16) (*Value, error) {
	resolved, userMethod, err := ResolveMethod(f.Pool, vm.class, index)
	if err != nil {
		return nil, err
	}
	if userMethod != nil {
		return vm.invokeUserMethod(f, userMethod)
	}
	return vm.invokeStaticIntrinsic(f, resolved)
}

// invokeUserMethod pops the callee's arguments off the caller's stack,
// builds a fresh frame sized to the callee's own max_locals, and runs it
// to completion before returning control to the caller, per spec §4.6.
func (vm *VM) invokeUserMethod(f *Frame, m *classfile.MethodInfo) (*Value, error) {
	if len(vm.frames) >= maxFrameDepth {
		return nil, rtfault.New(rtfault.CallStackOverflow)
	}
	argc := CountMethodParameters(m.Descriptor)
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := f.Pop()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	callee := NewFrame(m.MaxLocals, m.Bytecode, f.Pool)
	for i, a := range args {
		callee.SetLocal(i, a)
	}
	vm.frames = append(vm.frames, callee)
	ret, hasRet, done, err := vm.runFrameToCompletion()
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, rtfault.New(rtfault.InvalidStackState)
	}
	if hasRet {
		return &ret, nil
	}
	return nil, nil
}

// runFrameToCompletion steps the topmost frame (just pushed by a call
// site) until it returns, without touching the caller's PC.
func (vm *VM) runFrameToCompletion() (Value, bool, bool, error) {
	depth := len(vm.frames)
	for len(vm.frames) >= depth {
		if vm.steps >= MaxSteps {
			return Value{}, false, false, rtfault.New(rtfault.InvalidStackState)
		}
		vm.steps++
		f := vm.current()
		if f.PC == len(f.Bytecode) {
			vm.frames = vm.frames[:len(vm.frames)-1]
			return Value{}, false, true, nil
		}
		ret, hasRet, done, err := vm.step(f)
		if err != nil {
			return Value{}, false, false, err
		}
		if done {
			vm.frames = vm.frames[:len(vm.frames)-1]
			return ret, hasRet, true, nil
		}
	}
	return Value{}, false, false, nil
}

func (vm *VM) writer(isStderr int32) io.Writer {
	if isStderr != 0 {
		return vm.Stderr
	}
	return vm.Stdout
}

func (vm *VM) invokevirtual(f *Frame, index uint16) (*Value, error) {
	resolved, userMethod, err := ResolveMethod(f.Pool, vm.class, index)
	if err != nil {
		return nil, err
	}
	if userMethod != nil {
		return vm.invokeUserMethod(f, userMethod)
	}

	switch resolved {
	case PrintStreamPrintln, PrintStreamPrint, PrintStreamPrintlnString:
		arg, err := f.Pop()
		if err != nil {
			return nil, err
		}
		receiver, err := f.Pop()
		if err != nil {
			return nil, err
		}
		obj, ok := vm.heap.Object(receiver.Ref)
		isStderr := int32(0)
		if ok {
			if v, ok := obj.Fields["is_stderr"]; ok {
				isStderr = v.I
			}
		}
		w := vm.writer(isStderr)
		text, err := vm.renderPrintArg(arg)
		if err != nil {
			return nil, err
		}
		switch resolved {
		case PrintStreamPrintln, PrintStreamPrintlnString:
			native.PrintlnString(w, text)
		case PrintStreamPrint:
			native.PrintString(w, text)
		}
		return nil, nil

	case StringBuilderAppendString, StringBuilderAppendInt, StringBuilderAppendDouble:
		arg, err := f.Pop()
		if err != nil {
			return nil, err
		}
		receiver, err := f.Pop()
		if err != nil {
			return nil, err
		}
		cur, _ := vm.heap.String(receiver.Ref)
		var piece string
		switch resolved {
		case StringBuilderAppendInt:
			iv, err := arg.AsInt()
			if err != nil {
				return nil, err
			}
			piece = native.IntegerToString(iv)
		case StringBuilderAppendDouble:
			dv, err := arg.AsDouble()
			if err != nil {
				return nil, err
			}
			piece = native.DoubleToString(dv)
		default:
			s, ok := vm.heap.String(arg.Ref)
			if !ok {
				return nil, rtfault.New(rtfault.InvalidStackState)
			}
			piece = s
		}
		vm.heap.SetString(receiver.Ref, cur+piece)
		ret := Reference(receiver.Ref)
		return &ret, nil
	case StringBuilderToString:
		receiver, err := f.Pop()
		if err != nil {
			return nil, err
		}
		ret := Reference(receiver.Ref)
		return &ret, nil

	case StringLength, StringCharAt, StringSubstring, StringIndexOf,
		StringToUpperCase, StringToLowerCase, StringTrim, StringEquals, StringConcat:
		return vm.invokeStringMethod(f, resolved)

	default:
		// Unknown virtual calls still need the receiver popped to keep
		// the stack balanced; no args are assumed beyond the receiver.
		if _, err := f.Pop(); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

func (vm *VM) renderPrintArg(arg Value) (string, error) {
	switch arg.Kind {
	case KindReference:
		if arg.IsNull() {
			return "null", nil
		}
		s, ok := vm.heap.String(arg.Ref)
		if !ok {
			return "", rtfault.New(rtfault.InvalidStackState)
		}
		return s, nil
	case KindInt:
		return native.IntegerToString(arg.I), nil
	case KindLong:
		return native.LongToString(arg.L), nil
	case KindDouble:
		return native.DoubleToString(arg.D), nil
	case KindFloat:
		return native.DoubleToString(float64(arg.F)), nil
	case KindBoolean:
		return native.BooleanToString(arg.B), nil
	case KindChar:
		return string(rune(arg.C)), nil
	default:
		return "", rtfault.New(rtfault.InvalidStackState)
	}
}

func (vm *VM) invokeStaticIntrinsic(f *Frame, resolved ResolvedMethod) (*Value, error) {
	pop1 := func() (Value, error) { return f.Pop() }
	pop2 := func() (Value, Value, error) {
		b, err := f.Pop()
		if err != nil {
			return Value{}, Value{}, err
		}
		a, err := f.Pop()
		if err != nil {
			return Value{}, Value{}, err
		}
		return a, b, nil
	}

	switch resolved {
	case MathRandom:
		ret := Double(vm.rng.Float64())
		return &ret, nil
	case MathMaxInt:
		a, b, err := pop2()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsInt()
		bv, _ := b.AsInt()
		ret := Int(int32(native.MaxInt(int(av), int(bv))))
		return &ret, nil
	case MathMinInt:
		a, b, err := pop2()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsInt()
		bv, _ := b.AsInt()
		ret := Int(int32(native.MinInt(int(av), int(bv))))
		return &ret, nil
	case MathMaxDouble:
		a, b, err := pop2()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		bv, _ := b.AsDouble()
		ret := Double(math.Max(av, bv))
		return &ret, nil
	case MathMinDouble:
		a, b, err := pop2()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		bv, _ := b.AsDouble()
		ret := Double(math.Min(av, bv))
		return &ret, nil
	case MathAbs:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsInt()
		if av < 0 {
			av = -av
		}
		ret := Int(av)
		return &ret, nil
	case MathAbsDouble:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		ret := Double(math.Abs(av))
		return &ret, nil
	case MathPow:
		a, b, err := pop2()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		bv, _ := b.AsDouble()
		ret := Double(math.Pow(av, bv))
		return &ret, nil
	case MathSqrt:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		ret := Double(math.Sqrt(av))
		return &ret, nil
	case MathFloor:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		ret := Double(math.Floor(av))
		return &ret, nil
	case MathCeil:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		ret := Double(math.Ceil(av))
		return &ret, nil
	case MathRound:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		ret := Long(int64(math.Round(av)))
		return &ret, nil
	case MathSin:
		return vm.unaryDoubleIntrinsic(pop1, math.Sin)
	case MathCos:
		return vm.unaryDoubleIntrinsic(pop1, math.Cos)
	case MathTan:
		return vm.unaryDoubleIntrinsic(pop1, math.Tan)
	case MathLog:
		return vm.unaryDoubleIntrinsic(pop1, math.Log)
	case MathExp:
		return vm.unaryDoubleIntrinsic(pop1, math.Exp)

	case IntegerParseInt:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(a.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		n, err := native.IntegerParseInt(s)
		if err != nil {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		ret := Int(n)
		return &ret, nil
	case IntegerToString, IntegerValueOf:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsInt()
		ret := Reference(vm.heap.NewString(native.IntegerToString(av)))
		return &ret, nil
	case DoubleParseDouble:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(a.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		n, err := native.DoubleParseDouble(s)
		if err != nil {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		ret := Double(n)
		return &ret, nil
	case DoubleToString, DoubleValueOf:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		av, _ := a.AsDouble()
		ret := Reference(vm.heap.NewString(native.DoubleToString(av)))
		return &ret, nil
	case BooleanParseBoolean:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(a.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		ret := Boolean(native.BooleanParseBoolean(s))
		return &ret, nil
	case BooleanToString, BooleanValueOf:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		bv, _ := a.AsBoolean()
		ret := Reference(vm.heap.NewString(native.BooleanToString(bv)))
		return &ret, nil

	case CharacterIsDigit, CharacterIsLetter, CharacterToUpperCase, CharacterToLowerCase:
		a, err := pop1()
		if err != nil {
			return nil, err
		}
		c, err := a.AsChar()
		if err != nil {
			return nil, err
		}
		switch resolved {
		case CharacterIsDigit:
			ret := Boolean(native.CharacterIsDigit(c))
			return &ret, nil
		case CharacterIsLetter:
			ret := Boolean(native.CharacterIsLetter(c))
			return &ret, nil
		case CharacterToUpperCase:
			ret := Char(native.CharacterToUpperCase(c))
			return &ret, nil
		default:
			ret := Char(native.CharacterToLowerCase(c))
			return &ret, nil
		}

	default:
		return nil, rtfault.New(rtfault.InvalidStackState)
	}
}

func (vm *VM) unaryDoubleIntrinsic(pop1 func() (Value, error), fn func(float64) float64) (*Value, error) {
	a, err := pop1()
	if err != nil {
		return nil, err
	}
	av, err := a.AsDouble()
	if err != nil {
		return nil, err
	}
	ret := Double(fn(av))
	return &ret, nil
}

// invokeStringMethod handles the java/lang/String instance intrinsics:
// pop the receiver's string content after any arguments, compute, push.
func (vm *VM) invokeStringMethod(f *Frame, resolved ResolvedMethod) (*Value, error) {
	switch resolved {
	case StringLength:
		recv, err := f.Pop()
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(recv.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		ret := Int(int32(len([]rune(s))))
		return &ret, nil
	case StringCharAt:
		idx, err := f.Pop()
		if err != nil {
			return nil, err
		}
		recv, err := f.Pop()
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(recv.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		iv, _ := idx.AsInt()
		runes := []rune(s)
		if iv < 0 || int(iv) >= len(runes) {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		ret := Char(uint16(runes[iv]))
		return &ret, nil
	case StringSubstring:
		recv, start, hasEnd, end, err := vm.popSubstringArgs(f)
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(recv.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		result, err := native.StringSubstring(s, start, hasEnd, end)
		if err != nil {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		ret := Reference(vm.heap.NewString(result))
		return &ret, nil
	case StringIndexOf:
		arg, err := f.Pop()
		if err != nil {
			return nil, err
		}
		recv, err := f.Pop()
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(recv.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		sub, ok := vm.heap.String(arg.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		ret := Int(int32(native.StringIndexOf(s, sub)))
		return &ret, nil
	case StringToUpperCase, StringToLowerCase, StringTrim:
		recv, err := f.Pop()
		if err != nil {
			return nil, err
		}
		s, ok := vm.heap.String(recv.Ref)
		if !ok {
			return nil, rtfault.New(rtfault.InvalidStackState)
		}
		var result string
		switch resolved {
		case StringToUpperCase:
			result = native.StringToUpperCase(s)
		case StringToLowerCase:
			result = native.StringToLowerCase(s)
		default:
			result = native.StringTrim(s)
		}
		ret := Reference(vm.heap.NewString(result))
		return &ret, nil
	case StringEquals:
		arg, err := f.Pop()
		if err != nil {
			return nil, err
		}
		recv, err := f.Pop()
		if err != nil {
			return nil, err
		}
		s, _ := vm.heap.String(recv.Ref)
		other, _ := vm.heap.String(arg.Ref)
		ret := Boolean(s == other)
		return &ret, nil
	case StringConcat:
		arg, err := f.Pop()
		if err != nil {
			return nil, err
		}
		recv, err := f.Pop()
		if err != nil {
			return nil, err
		}
		s, _ := vm.heap.String(recv.Ref)
		other, _ := vm.heap.String(arg.Ref)
		ret := Reference(vm.heap.NewString(s + other))
		return &ret, nil
	default:
		return nil, rtfault.New(rtfault.InvalidStackState)
	}
}

func (vm *VM) popSubstringArgs(f *Frame) (receiver Value, start int, hasEnd bool, end int, err error) {
	first, err := f.Pop()
	if err != nil {
		return Value{}, 0, false, 0, err
	}
	// Either (receiver, beginIndex) or (receiver, beginIndex, endIndex);
	// since args were pushed left-to-right, popping may hand us either
	// beginIndex alone or endIndex first. Disambiguate by the kind of the
	// second popped value: a Reference there is the receiver of the
	// one-argument form; otherwise it is beginIndex and the receiver is
	// popped third.
	second, err := f.Pop()
	if err != nil {
		return Value{}, 0, false, 0, err
	}
	if second.Kind == KindReference {
		iv, e := first.AsInt()
		if e != nil {
			return Value{}, 0, false, 0, e
		}
		return second, int(iv), false, 0, nil
	}
	third, err := f.Pop()
	if err != nil {
		return Value{}, 0, false, 0, err
	}
	beginV, e := second.AsInt()
	if e != nil {
		return Value{}, 0, false, 0, e
	}
	endV, e := first.AsInt()
	if e != nil {
		return Value{}, 0, false, 0, e
	}
	return third, int(beginV), true, int(endV), nil
}
