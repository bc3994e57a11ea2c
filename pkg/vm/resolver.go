package vm

import (
	"strings"

	"github.com/samber/lo"

	"github.com/tangled-dice/dicejvm/pkg/classfile"
)

// ResolvedMethod is the closed set of intrinsic behaviors a Methodref can
// resolve to. Unknown covers every (class, name, descriptor) triple that
// isn't one of these, including anything the user class itself defines
// (those are resolved separately, by name, before this table is consulted).
type ResolvedMethod int

const (
	Unknown ResolvedMethod = iota

	PrintStreamPrintln
	PrintStreamPrintlnString
	PrintStreamPrint

	MathRandom
	MathMaxInt
	MathMinInt
	MathMaxDouble
	MathMinDouble
	MathAbs
	MathAbsDouble
	MathPow
	MathSqrt
	MathFloor
	MathCeil
	MathRound
	MathSin
	MathCos
	MathTan
	MathLog
	MathExp

	StringLength
	StringCharAt
	StringSubstring
	StringIndexOf
	StringToUpperCase
	StringToLowerCase
	StringTrim
	StringEquals
	StringConcat

	StringBuilderAppendString
	StringBuilderAppendInt
	StringBuilderAppendDouble
	StringBuilderToString

	IntegerParseInt
	IntegerToString
	IntegerValueOf
	DoubleParseDouble
	DoubleToString
	DoubleValueOf
	BooleanParseBoolean
	BooleanToString
	BooleanValueOf

	CharacterIsDigit
	CharacterIsLetter
	CharacterToUpperCase
	CharacterToLowerCase
)

type intrinsicKey struct {
	class      string
	method     string
	descriptor string
}

var intrinsicTable = []struct {
	key    intrinsicKey
	result ResolvedMethod
}{
	{intrinsicKey{"java/io/PrintStream", "println", "(I)V"}, PrintStreamPrintln},
	{intrinsicKey{"java/io/PrintStream", "println", "(J)V"}, PrintStreamPrintln},
	{intrinsicKey{"java/io/PrintStream", "println", "(F)V"}, PrintStreamPrintln},
	{intrinsicKey{"java/io/PrintStream", "println", "(D)V"}, PrintStreamPrintln},
	{intrinsicKey{"java/io/PrintStream", "println", "(Z)V"}, PrintStreamPrintln},
	{intrinsicKey{"java/io/PrintStream", "println", "(C)V"}, PrintStreamPrintln},
	{intrinsicKey{"java/io/PrintStream", "println", "(Ljava/lang/String;)V"}, PrintStreamPrintlnString},
	{intrinsicKey{"java/io/PrintStream", "println", "(Ljava/lang/Object;)V"}, PrintStreamPrintlnString},
	{intrinsicKey{"java/io/PrintStream", "print", "(Ljava/lang/String;)V"}, PrintStreamPrint},
	{intrinsicKey{"java/io/PrintStream", "print", "(I)V"}, PrintStreamPrint},

	{intrinsicKey{"java/lang/Math", "random", "()D"}, MathRandom},
	{intrinsicKey{"java/lang/Math", "max", "(II)I"}, MathMaxInt},
	{intrinsicKey{"java/lang/Math", "min", "(II)I"}, MathMinInt},
	{intrinsicKey{"java/lang/Math", "max", "(DD)D"}, MathMaxDouble},
	{intrinsicKey{"java/lang/Math", "min", "(DD)D"}, MathMinDouble},
	{intrinsicKey{"java/lang/Math", "abs", "(I)I"}, MathAbs},
	{intrinsicKey{"java/lang/Math", "abs", "(D)D"}, MathAbsDouble},
	{intrinsicKey{"java/lang/Math", "pow", "(DD)D"}, MathPow},
	{intrinsicKey{"java/lang/Math", "sqrt", "(D)D"}, MathSqrt},
	{intrinsicKey{"java/lang/Math", "floor", "(D)D"}, MathFloor},
	{intrinsicKey{"java/lang/Math", "ceil", "(D)D"}, MathCeil},
	{intrinsicKey{"java/lang/Math", "round", "(D)J"}, MathRound},
	{intrinsicKey{"java/lang/Math", "sin", "(D)D"}, MathSin},
	{intrinsicKey{"java/lang/Math", "cos", "(D)D"}, MathCos},
	{intrinsicKey{"java/lang/Math", "tan", "(D)D"}, MathTan},
	{intrinsicKey{"java/lang/Math", "log", "(D)D"}, MathLog},
	{intrinsicKey{"java/lang/Math", "exp", "(D)D"}, MathExp},

	{intrinsicKey{"java/lang/String", "length", "()I"}, StringLength},
	{intrinsicKey{"java/lang/String", "charAt", "(I)C"}, StringCharAt},
	{intrinsicKey{"java/lang/String", "substring", "(I)Ljava/lang/String;"}, StringSubstring},
	{intrinsicKey{"java/lang/String", "substring", "(II)Ljava/lang/String;"}, StringSubstring},
	{intrinsicKey{"java/lang/String", "indexOf", "(Ljava/lang/String;)I"}, StringIndexOf},
	{intrinsicKey{"java/lang/String", "toUpperCase", "()Ljava/lang/String;"}, StringToUpperCase},
	{intrinsicKey{"java/lang/String", "toLowerCase", "()Ljava/lang/String;"}, StringToLowerCase},
	{intrinsicKey{"java/lang/String", "trim", "()Ljava/lang/String;"}, StringTrim},
	{intrinsicKey{"java/lang/String", "equals", "(Ljava/lang/Object;)Z"}, StringEquals},
	{intrinsicKey{"java/lang/String", "concat", "(Ljava/lang/String;)Ljava/lang/String;"}, StringConcat},

	{intrinsicKey{"java/lang/StringBuilder", "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;"}, StringBuilderAppendString},
	{intrinsicKey{"java/lang/StringBuilder", "append", "(I)Ljava/lang/StringBuilder;"}, StringBuilderAppendInt},
	{intrinsicKey{"java/lang/StringBuilder", "append", "(D)Ljava/lang/StringBuilder;"}, StringBuilderAppendDouble},
	{intrinsicKey{"java/lang/StringBuilder", "toString", "()Ljava/lang/String;"}, StringBuilderToString},

	{intrinsicKey{"java/lang/Integer", "parseInt", "(Ljava/lang/String;)I"}, IntegerParseInt},
	{intrinsicKey{"java/lang/Integer", "toString", "(I)Ljava/lang/String;"}, IntegerToString},
	{intrinsicKey{"java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;"}, IntegerValueOf},
	{intrinsicKey{"java/lang/Double", "parseDouble", "(Ljava/lang/String;)D"}, DoubleParseDouble},
	{intrinsicKey{"java/lang/Double", "toString", "(D)Ljava/lang/String;"}, DoubleToString},
	{intrinsicKey{"java/lang/Double", "valueOf", "(D)Ljava/lang/Double;"}, DoubleValueOf},
	{intrinsicKey{"java/lang/Boolean", "parseBoolean", "(Ljava/lang/String;)Z"}, BooleanParseBoolean},
	{intrinsicKey{"java/lang/Boolean", "toString", "(Z)Ljava/lang/String;"}, BooleanToString},
	{intrinsicKey{"java/lang/Boolean", "valueOf", "(Z)Ljava/lang/Boolean;"}, BooleanValueOf},

	{intrinsicKey{"java/lang/Character", "isDigit", "(C)Z"}, CharacterIsDigit},
	{intrinsicKey{"java/lang/Character", "isLetter", "(C)Z"}, CharacterIsLetter},
	{intrinsicKey{"java/lang/Character", "toUpperCase", "(C)C"}, CharacterToUpperCase},
	{intrinsicKey{"java/lang/Character", "toLowerCase", "(C)C"}, CharacterToLowerCase},
}

// ResolveIntrinsic matches a (class, name, descriptor) triple against the
// closed intrinsic table, per spec §4.5.
func ResolveIntrinsic(className, methodName, descriptor string) ResolvedMethod {
	key := intrinsicKey{className, methodName, descriptor}
	match, ok := lo.Find(intrinsicTable, func(e struct {
		key    intrinsicKey
		result ResolvedMethod
	}) bool {
		return e.key == key
	})
	if !ok {
		return Unknown
	}
	return match.result
}

// ResolveMethod resolves a Methodref pool index, preferring a user-defined
// method of the current class when the target class isn't java/-prefixed
// and the class defines a method of that name, per spec §4.5.
func ResolveMethod(pool *classfile.ConstantPool, class *classfile.ClassFile, index uint16) (ResolvedMethod, *classfile.MethodInfo, error) {
	ref, err := pool.Methodref(index)
	if err != nil {
		return Unknown, nil, err
	}
	if !strings.HasPrefix(ref.ClassName, "java/") {
		if m, ok := class.Methods[ref.MethodName]; ok {
			return Unknown, m, nil
		}
	}
	return ResolveIntrinsic(ref.ClassName, ref.MethodName, ref.Descriptor), nil, nil
}

// StaticFieldKind distinguishes the two System stream fields this engine
// recognizes for getstatic.
type StaticFieldKind int

const (
	FieldUnknown StaticFieldKind = iota
	FieldSystemOut
	FieldSystemErr
)

// ResolveStaticField resolves a Fieldref pool index for getstatic,
// recognizing only java/lang/System.{out,err}, per spec §4.5.
func ResolveStaticField(pool *classfile.ConstantPool, index uint16) (StaticFieldKind, error) {
	ref, err := pool.Fieldref(index)
	if err != nil {
		return FieldUnknown, err
	}
	if ref.ClassName != "java/lang/System" {
		return FieldUnknown, nil
	}
	switch ref.FieldName {
	case "out":
		return FieldSystemOut, nil
	case "err":
		return FieldSystemErr, nil
	default:
		return FieldUnknown, nil
	}
}

// CountMethodParameters scans a method descriptor and returns its
// parameter arity, per spec §4.6/§8.
func CountMethodParameters(descriptor string) int {
	count := 0
	i := 1 // skip leading '('
	for i < len(descriptor) && descriptor[i] != ')' {
		switch descriptor[i] {
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
			count++
			i++
		case 'L':
			count++
			for i < len(descriptor) && descriptor[i] != ';' {
				i++
			}
			i++ // consume ';'
		case '[':
			i++ // consumed; the following primitive-or-L still counts as one
		default:
			i++
		}
	}
	return count
}
