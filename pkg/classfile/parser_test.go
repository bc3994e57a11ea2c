package classfile

import (
	"bytes"
	"testing"
)

// buildAddClass constructs a minimal class file equivalent to the dice
// codegen's output: a single static main method that pushes 2 and 3,
// adds them, and returns.
func buildAddClass(t *testing.T) *ClassFile {
	t.Helper()
	pool := NewConstantPool()
	classNameIdx := pool.AddUtf8("Add")
	thisClass := pool.AddClass(classNameIdx)
	objNameIdx := pool.AddUtf8("java/lang/Object")
	superClass := pool.AddClass(objNameIdx)
	pool.AddUtf8("main")
	pool.AddUtf8("()V")
	pool.AddUtf8("Code")

	cf := &ClassFile{
		MinorVersion: 0,
		MajorVersion: 52,
		ConstantPool: pool,
		AccessFlags:  AccPublic | AccSuper,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Methods:      map[string]*MethodInfo{},
	}

	main := &MethodInfo{
		Name:       "main",
		Descriptor: "()V",
		MaxStack:   2,
		MaxLocals:  1,
		Bytecode: []Instruction{
			{Op: OpIconst2},
			{Op: OpIconst3},
			{Op: OpIadd},
			{Op: OpReturn},
		},
	}
	cf.Methods["main"] = main
	cf.MainMethod = main
	return cf
}

func TestWriteThenParseRoundTrip(t *testing.T) {
	cf := buildAddClass(t)

	var buf bytes.Buffer
	if err := Write(&buf, cf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, warnings, err := Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if parsed.MajorVersion != 52 {
		t.Errorf("major version: got %d, want 52", parsed.MajorVersion)
	}

	className, err := parsed.ClassName()
	if err != nil {
		t.Fatalf("resolving this_class: %v", err)
	}
	if className != "Add" {
		t.Errorf("this_class: got %q, want %q", className, "Add")
	}

	if parsed.MainMethod == nil {
		t.Fatal("main method not found")
	}
	if len(parsed.MainMethod.Bytecode) != 4 {
		t.Errorf("main bytecode length: got %d, want 4", len(parsed.MainMethod.Bytecode))
	}
	if parsed.MainMethod.Bytecode[2].Op != OpIadd {
		t.Errorf("main bytecode[2]: got %v, want OpIadd", parsed.MainMethod.Bytecode[2].Op)
	}
}

func TestParseInvalidMagic(t *testing.T) {
	_, _, err := Parse(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	if err == nil {
		t.Error("expected error for invalid magic number, got nil")
	}
}

func TestParseUnknownOpcodeWarns(t *testing.T) {
	// 0xFE is not in the opcode table; ParseBytecode must skip only the
	// opcode byte and report a warning rather than failing outright.
	code := []byte{byte(OpIconst1), 0xFE, byte(OpReturn)}
	ins, warnings, err := ParseBytecode(code)
	if err != nil {
		t.Fatalf("ParseBytecode: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings: got %d, want 1", len(warnings))
	}
	if len(ins) != 2 {
		t.Fatalf("instructions: got %d, want 2 (unknown opcode produces no instruction)", len(ins))
	}
	if ins[0].Op != OpIconst1 || ins[1].Op != OpReturn {
		t.Errorf("decoded ops: got %v, %v", ins[0].Op, ins[1].Op)
	}
}

func TestConstantPoolLongDoubleAliasing(t *testing.T) {
	pool := NewConstantPool()
	before := pool.AddUtf8("before")
	longIdx := pool.AddLong(123456789012345)
	after := pool.AddUtf8("after")

	if after != longIdx+2 {
		t.Errorf("Long entry should consume two slots: before=%d long=%d after=%d", before, longIdx, after)
	}

	entry, err := pool.Entry(longIdx)
	if err != nil {
		t.Fatalf("Entry(longIdx): %v", err)
	}
	lv, ok := entry.(*ConstantLong)
	if !ok || lv.Value != 123456789012345 {
		t.Errorf("Entry(longIdx): got %#v, want ConstantLong{123456789012345}", entry)
	}
}
