package codegen

import (
	"testing"

	"github.com/tangled-dice/dicejvm/internal/ast"
	"github.com/tangled-dice/dicejvm/internal/diceerr"
	"github.com/tangled-dice/dicejvm/pkg/classfile"
)

func diceProgram(count, faces uint32) *ast.Program {
	expr := ast.NewDiceExpression(count, faces, diceerr.Span{})
	stmt := ast.NewStatement(expr, diceerr.Span{})
	return &ast.Program{Statement: &stmt}
}

func TestGenerateClassSingleDie(t *testing.T) {
	cf, err := GenerateClass(diceProgram(1, 6), "DiceRoll")
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}
	if cf.MainMethod == nil {
		t.Fatal("no main method generated")
	}
	last := cf.MainMethod.Bytecode[len(cf.MainMethod.Bytecode)-1]
	if last.Op != classfile.OpReturn {
		t.Errorf("last instruction: got %v, want OpReturn", last.Op)
	}

	name, err := cf.ClassName()
	if err != nil || name != "DiceRoll" {
		t.Errorf("ClassName: got (%q, %v), want (DiceRoll, nil)", name, err)
	}
}

func TestGenerateClassMultipleDice(t *testing.T) {
	cf, err := GenerateClass(diceProgram(3, 6), "DiceRoll")
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}

	foundIadd := false
	for _, in := range cf.MainMethod.Bytecode {
		if in.Op == classfile.OpIadd {
			foundIadd = true
		}
	}
	if !foundIadd {
		t.Error("multiple-dice program should accumulate a running total via Iadd")
	}
}

func TestGenerateClassEmptyProgram(t *testing.T) {
	if _, err := GenerateClass(&ast.Program{}, "Empty"); err == nil {
		t.Error("GenerateClass(empty program): want error, got nil")
	}
}
