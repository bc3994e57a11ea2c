package vm

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/tangled-dice/dicejvm/pkg/classfile"
)

func newTestVM(pool *classfile.ConstantPool, main *classfile.MethodInfo, stdout, stderr *bytes.Buffer) *VM {
	if pool == nil {
		pool = classfile.NewConstantPool()
	}
	cf := &classfile.ClassFile{
		ConstantPool: pool,
		Methods:      map[string]*classfile.MethodInfo{"main": main},
		MainMethod:   main,
	}
	return New(cf, stdout, stderr, rand.New(rand.NewSource(1)))
}

func TestExecuteMainSimpleAddition(t *testing.T) {
	main := &classfile.MethodInfo{
		Name: "main", Descriptor: "()I", MaxLocals: 0,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpIconst2},
			{Op: classfile.OpIconst3},
			{Op: classfile.OpIadd},
			{Op: classfile.OpIreturn},
		},
	}
	var stdout, stderr bytes.Buffer
	vm := newTestVM(nil, main, &stdout, &stderr)

	ret, hasRet, err := vm.ExecuteMain()
	if err != nil {
		t.Fatalf("ExecuteMain: %v", err)
	}
	if !hasRet || ret.I != 5 {
		t.Errorf("ExecuteMain: got (%+v, %v), want (Int(5), true)", ret, hasRet)
	}
}

func TestExecuteMainBranch(t *testing.T) {
	// Iconst0, Ifne(5), Iconst1, Ireturn, Iconst2, Ireturn
	main := &classfile.MethodInfo{
		Name: "main", Descriptor: "()I", MaxLocals: 0,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpIconst0},
			{Op: classfile.OpIfne, Imm: 5},
			{Op: classfile.OpIconst1},
			{Op: classfile.OpIreturn},
			{Op: classfile.OpIconst2},
			{Op: classfile.OpIreturn},
		},
	}
	var stdout, stderr bytes.Buffer
	vm := newTestVM(nil, main, &stdout, &stderr)

	ret, hasRet, err := vm.ExecuteMain()
	if err != nil {
		t.Fatalf("ExecuteMain: %v", err)
	}
	if !hasRet || ret.I != 1 {
		t.Errorf("ExecuteMain: got (%+v, %v), want (Int(1), true)", ret, hasRet)
	}
}

func TestExecuteMainPrintlnString(t *testing.T) {
	pool := classfile.NewConstantPool()
	helloIdx := pool.AddUtf8("Hello, World!")
	helloString := pool.AddString(helloIdx)
	systemNameIdx := pool.AddUtf8("java/lang/System")
	outFieldIdx := pool.AddUtf8("out")
	printStreamDescIdx := pool.AddUtf8("Ljava/io/PrintStream;")
	printStreamNameIdx := pool.AddUtf8("java/io/PrintStream")
	printlnNameIdx := pool.AddUtf8("println")
	printlnDescIdx := pool.AddUtf8("(Ljava/lang/String;)V")

	systemClass := pool.AddClass(systemNameIdx)
	printStreamClass := pool.AddClass(printStreamNameIdx)
	outNat := pool.AddNameAndType(outFieldIdx, printStreamDescIdx)
	printlnNat := pool.AddNameAndType(printlnNameIdx, printlnDescIdx)
	systemOut := pool.AddFieldref(systemClass, outNat)
	printlnMethod := pool.AddMethodref(printStreamClass, printlnNat)

	main := &classfile.MethodInfo{
		Name: "main", Descriptor: "()V", MaxLocals: 0,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpGetstatic, Imm: int32(systemOut)},
			{Op: classfile.OpLdc, Imm: int32(helloString)},
			{Op: classfile.OpInvokevirtual, Imm: int32(printlnMethod)},
			{Op: classfile.OpReturn},
		},
	}

	var stdout, stderr bytes.Buffer
	vm := newTestVM(pool, main, &stdout, &stderr)

	_, hasRet, err := vm.ExecuteMain()
	if err != nil {
		t.Fatalf("ExecuteMain: %v", err)
	}
	if hasRet {
		t.Error("ExecuteMain on a void method: want hasRet=false")
	}
	if stdout.String() != "Hello, World!\n" {
		t.Errorf("stdout: got %q, want %q", stdout.String(), "Hello, World!\n")
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr: got %q, want empty", stderr.String())
	}
}

func TestExecuteMainMathRandomNoFault(t *testing.T) {
	pool := classfile.NewConstantPool()
	mathNameIdx := pool.AddUtf8("java/lang/Math")
	randomNameIdx := pool.AddUtf8("random")
	randomDescIdx := pool.AddUtf8("()D")
	mathClass := pool.AddClass(mathNameIdx)
	randomNat := pool.AddNameAndType(randomNameIdx, randomDescIdx)
	randomMethod := pool.AddMethodref(mathClass, randomNat)

	main := &classfile.MethodInfo{
		Name: "main", Descriptor: "()V", MaxLocals: 0,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpInvokestatic, Imm: int32(randomMethod)},
			{Op: classfile.OpReturn},
		},
	}

	var stdout, stderr bytes.Buffer
	vm := newTestVM(pool, main, &stdout, &stderr)

	_, hasRet, err := vm.ExecuteMain()
	if err != nil {
		t.Fatalf("ExecuteMain: %v", err)
	}
	if hasRet {
		t.Error("ExecuteMain on a void method: want hasRet=false")
	}
}

func TestExecuteMainDivisionByZero(t *testing.T) {
	main := &classfile.MethodInfo{
		Name: "main", Descriptor: "()I", MaxLocals: 0,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpIconst1},
			{Op: classfile.OpIconst0},
			{Op: classfile.OpIdiv},
			{Op: classfile.OpIreturn},
		},
	}
	var stdout, stderr bytes.Buffer
	vm := newTestVM(nil, main, &stdout, &stderr)

	if _, _, err := vm.ExecuteMain(); err == nil {
		t.Error("ExecuteMain with Idiv by zero: want fault, got nil")
	}
}

func TestExecuteMainInvokestaticUserMethod(t *testing.T) {
	pool := classfile.NewConstantPool()
	classNameIdx := pool.AddUtf8("DiceRoll")
	doubleNameIdx := pool.AddUtf8("double")
	descIdx := pool.AddUtf8("(I)I")
	classIdx := pool.AddClass(classNameIdx)
	natIdx := pool.AddNameAndType(doubleNameIdx, descIdx)
	methodrefIdx := pool.AddMethodref(classIdx, natIdx)

	doubleMethod := &classfile.MethodInfo{
		Name: "double", Descriptor: "(I)I", MaxLocals: 1,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpIload0},
			{Op: classfile.OpIload0},
			{Op: classfile.OpIadd},
			{Op: classfile.OpIreturn},
		},
	}
	main := &classfile.MethodInfo{
		Name: "main", Descriptor: "()I", MaxLocals: 0,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpIconst4},
			{Op: classfile.OpInvokestatic, Imm: int32(methodrefIdx)},
			{Op: classfile.OpIreturn},
		},
	}

	var stdout, stderr bytes.Buffer
	cf := &classfile.ClassFile{
		ConstantPool: pool,
		Methods:      map[string]*classfile.MethodInfo{"main": main, "double": doubleMethod},
		MainMethod:   main,
	}
	vm := New(cf, &stdout, &stderr, rand.New(rand.NewSource(1)))

	ret, hasRet, err := vm.ExecuteMain()
	if err != nil {
		t.Fatalf("ExecuteMain: %v", err)
	}
	if !hasRet || ret.I != 8 {
		t.Errorf("ExecuteMain: got (%+v, %v), want (Int(8), true)", ret, hasRet)
	}
}

func TestExecuteMainStepBudgetExceeded(t *testing.T) {
	// An unconditional self-loop must hit the step ceiling rather than
	// spin forever.
	main := &classfile.MethodInfo{
		Name: "main", Descriptor: "()V", MaxLocals: 0,
		Bytecode: []classfile.Instruction{
			{Op: classfile.OpGoto, Imm: 0},
		},
	}
	var stdout, stderr bytes.Buffer
	vm := newTestVM(nil, main, &stdout, &stderr)

	if _, _, err := vm.ExecuteMain(); err == nil {
		t.Error("ExecuteMain with infinite loop: want step-budget fault, got nil")
	}
}
