// Package codegen is the bridge between the dice expression front end and
// the class-file back end: it builds a constant pool wired for
// System.out/err, PrintStream.println/print, and Math.random, then emits
// the bytecode a dice roll statement compiles to.
package codegen

import (
	"fmt"

	"github.com/tangled-dice/dicejvm/internal/ast"
	"github.com/tangled-dice/dicejvm/pkg/classfile"
)

// pool holds the indices every generated method needs to reference, set
// up once per class and shared by every bytecode-emitting helper.
type pool struct {
	cp *classfile.ConstantPool

	systemOut   uint16
	systemErr   uint16
	printlnInt  uint16
	printString uint16
	mathRandom  uint16
	totalPrefix uint16
}

// setupConstantPool interns every symbol the dice bytecode generator can
// reference, mirroring the original generator's fixed pool layout.
func setupConstantPool(className string) (*classfile.ClassFile, *pool) {
	cp := classfile.NewConstantPool()

	classNameIdx := cp.AddUtf8(className)
	objectNameIdx := cp.AddUtf8("java/lang/Object")
	cp.AddUtf8("main")
	cp.AddUtf8("([Ljava/lang/String;)V")
	cp.AddUtf8("Code")
	systemNameIdx := cp.AddUtf8("java/lang/System")
	outFieldIdx := cp.AddUtf8("out")
	errFieldIdx := cp.AddUtf8("err")
	printStreamDescIdx := cp.AddUtf8("Ljava/io/PrintStream;")
	printStreamNameIdx := cp.AddUtf8("java/io/PrintStream")
	printlnNameIdx := cp.AddUtf8("println")
	printlnDescIdx := cp.AddUtf8("(I)V")
	mathNameIdx := cp.AddUtf8("java/lang/Math")
	randomNameIdx := cp.AddUtf8("random")
	randomDescIdx := cp.AddUtf8("()D")
	totalStrIdx := cp.AddUtf8("Total: ")
	printNameIdx := cp.AddUtf8("print")
	printDescIdx := cp.AddUtf8("(Ljava/lang/String;)V")

	thisClass := cp.AddClass(classNameIdx)
	superClass := cp.AddClass(objectNameIdx)
	systemClass := cp.AddClass(systemNameIdx)
	printStreamClass := cp.AddClass(printStreamNameIdx)
	mathClass := cp.AddClass(mathNameIdx)

	totalString := cp.AddString(totalStrIdx)

	outNat := cp.AddNameAndType(outFieldIdx, printStreamDescIdx)
	errNat := cp.AddNameAndType(errFieldIdx, printStreamDescIdx)
	printlnNat := cp.AddNameAndType(printlnNameIdx, printlnDescIdx)
	printNat := cp.AddNameAndType(printNameIdx, printDescIdx)
	randomNat := cp.AddNameAndType(randomNameIdx, randomDescIdx)

	systemOut := cp.AddFieldref(systemClass, outNat)
	systemErr := cp.AddFieldref(systemClass, errNat)
	printlnMethod := cp.AddMethodref(printStreamClass, printlnNat)
	printMethod := cp.AddMethodref(printStreamClass, printNat)
	randomMethod := cp.AddMethodref(mathClass, randomNat)

	cf := &classfile.ClassFile{
		MinorVersion: 0,
		MajorVersion: 52,
		ConstantPool: cp,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Methods:      map[string]*classfile.MethodInfo{},
	}

	return cf, &pool{
		cp:          cp,
		systemOut:   systemOut,
		systemErr:   systemErr,
		printlnInt:  printlnMethod,
		printString: printMethod,
		mathRandom:  randomMethod,
		totalPrefix: totalString,
	}
}

// GenerateClass compiles a dice expression statement into a full class
// file, with class name className and a main([Ljava/lang/String;)V entry
// point, per the spec's "run"/"compile" CLI paths.
func GenerateClass(prog *ast.Program, className string) (*classfile.ClassFile, error) {
	if prog.Statement == nil {
		return nil, fmt.Errorf("codegen: empty program")
	}
	expr := prog.Statement.Expr
	if expr.Kind != ast.DiceExpression {
		return nil, fmt.Errorf("codegen: unsupported expression kind %v", expr.Kind)
	}

	cf, p := setupConstantPool(className)
	code := generateDiceBytecode(p, expr.Count, expr.Faces)

	main := &classfile.MethodInfo{
		Name:       "main",
		Descriptor: "([Ljava/lang/String;)V",
		MaxStack:   5,
		MaxLocals:  2,
		Bytecode:   code,
	}
	cf.Methods["main"] = main
	cf.MainMethod = main
	return cf, nil
}

// generateDiceBytecode emits the roll-and-report sequence: a single die
// just prints its result, while multiple dice print each roll and then
// the running total to stderr, per spec §4.1/§9 (grounded on the
// generator's single-vs-multiple-dice split).
func generateDiceBytecode(p *pool, count, faces uint32) []classfile.Instruction {
	var ins []classfile.Instruction
	if count == 1 {
		ins = append(ins, generateSingleDie(p, faces)...)
	} else {
		ins = append(ins, generateMultipleDice(p, count, faces)...)
	}
	ins = append(ins, classfile.Instruction{Op: classfile.OpReturn})
	return ins
}

func generateSingleDie(p *pool, faces uint32) []classfile.Instruction {
	var ins []classfile.Instruction
	ins = append(ins, rollOneDie(p, faces)...)
	ins = append(ins,
		classfile.Instruction{Op: classfile.OpGetstatic, Imm: int32(p.systemOut)},
		classfile.Instruction{Op: classfile.OpSwap},
		classfile.Instruction{Op: classfile.OpInvokevirtual, Imm: int32(p.printlnInt)},
	)
	return ins
}

func generateMultipleDice(p *pool, count, faces uint32) []classfile.Instruction {
	ins := []classfile.Instruction{{Op: classfile.OpIconst0}} // total = 0

	for i := uint32(0); i < count; i++ {
		ins = append(ins, rollOneDie(p, faces)...)
		ins = append(ins,
			classfile.Instruction{Op: classfile.OpDup},
			classfile.Instruction{Op: classfile.OpGetstatic, Imm: int32(p.systemOut)},
			classfile.Instruction{Op: classfile.OpSwap},
			classfile.Instruction{Op: classfile.OpInvokevirtual, Imm: int32(p.printlnInt)},
			classfile.Instruction{Op: classfile.OpIadd},
		)
	}

	ins = append(ins,
		classfile.Instruction{Op: classfile.OpDup},
		classfile.Instruction{Op: classfile.OpGetstatic, Imm: int32(p.systemErr)},
		classfile.Instruction{Op: classfile.OpLdc, Imm: int32(p.totalPrefix)},
		classfile.Instruction{Op: classfile.OpInvokevirtual, Imm: int32(p.printString)},
		classfile.Instruction{Op: classfile.OpGetstatic, Imm: int32(p.systemErr)},
		classfile.Instruction{Op: classfile.OpSwap},
		classfile.Instruction{Op: classfile.OpInvokevirtual, Imm: int32(p.printlnInt)},
		classfile.Instruction{Op: classfile.OpPop},
	)
	return ins
}

// rollOneDie emits Math.random() * faces + 1, truncated to int, per
// spec §4.1 "one die roll".
func rollOneDie(p *pool, faces uint32) []classfile.Instruction {
	ins := []classfile.Instruction{{Op: classfile.OpInvokestatic, Imm: int32(p.mathRandom)}}
	ins = append(ins, pushDoubleConstant(float64(faces))...)
	ins = append(ins,
		classfile.Instruction{Op: classfile.OpDmul},
		classfile.Instruction{Op: classfile.OpDconst1},
		classfile.Instruction{Op: classfile.OpDadd},
		classfile.Instruction{Op: classfile.OpD2i},
	)
	return ins
}

func pushDoubleConstant(value float64) []classfile.Instruction {
	switch value {
	case 0:
		return []classfile.Instruction{{Op: classfile.OpDconst0}}
	case 1:
		return []classfile.Instruction{{Op: classfile.OpDconst1}}
	default:
		ins := pushIntConstant(int32(value))
		return append(ins, classfile.Instruction{Op: classfile.OpI2d})
	}
}

// pushIntConstant selects the narrowest form that can hold value, per the
// generator's Iconst/Bipush/Sipush tiering.
func pushIntConstant(value int32) []classfile.Instruction {
	switch value {
	case -1:
		return []classfile.Instruction{{Op: classfile.OpIconstM1}}
	case 0:
		return []classfile.Instruction{{Op: classfile.OpIconst0}}
	case 1:
		return []classfile.Instruction{{Op: classfile.OpIconst1}}
	case 2:
		return []classfile.Instruction{{Op: classfile.OpIconst2}}
	case 3:
		return []classfile.Instruction{{Op: classfile.OpIconst3}}
	case 4:
		return []classfile.Instruction{{Op: classfile.OpIconst4}}
	case 5:
		return []classfile.Instruction{{Op: classfile.OpIconst5}}
	}
	if value >= -128 && value <= 127 {
		return []classfile.Instruction{{Op: classfile.OpBipush, Imm: value}}
	}
	return []classfile.Instruction{{Op: classfile.OpSipush, Imm: value}}
}
