package vm

import (
	"testing"

	"github.com/tangled-dice/dicejvm/pkg/classfile"
)

func TestResolveIntrinsicKnown(t *testing.T) {
	got := ResolveIntrinsic("java/lang/Math", "random", "()D")
	if got != MathRandom {
		t.Errorf("ResolveIntrinsic(Math.random): got %v, want MathRandom", got)
	}
}

func TestResolveIntrinsicUnknown(t *testing.T) {
	got := ResolveIntrinsic("java/lang/Thread", "sleep", "(J)V")
	if got != Unknown {
		t.Errorf("ResolveIntrinsic(unmapped): got %v, want Unknown", got)
	}
}

func TestResolveIntrinsicValueOfTakesPrimitiveArg(t *testing.T) {
	cases := []struct {
		class, method, descriptor string
		want                      ResolvedMethod
	}{
		{"java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", IntegerValueOf},
		{"java/lang/Double", "valueOf", "(D)Ljava/lang/Double;", DoubleValueOf},
		{"java/lang/Boolean", "valueOf", "(Z)Ljava/lang/Boolean;", BooleanValueOf},
	}
	for _, c := range cases {
		if got := ResolveIntrinsic(c.class, c.method, c.descriptor); got != c.want {
			t.Errorf("ResolveIntrinsic(%s.%s%s): got %v, want %v", c.class, c.method, c.descriptor, got, c.want)
		}
	}

	// The String-argument descriptor is not a valueOf overload this engine
	// models; it must not resolve.
	if got := ResolveIntrinsic("java/lang/Integer", "valueOf", "(Ljava/lang/String;)Ljava/lang/Integer;"); got != Unknown {
		t.Errorf("ResolveIntrinsic(Integer.valueOf(String)): got %v, want Unknown", got)
	}
}

func TestResolveMethodPrefersUserMethod(t *testing.T) {
	pool := classfile.NewConstantPool()
	classNameIdx := pool.AddUtf8("DiceRoll")
	methodNameIdx := pool.AddUtf8("helper")
	descIdx := pool.AddUtf8("(I)I")
	classIdx := pool.AddClass(classNameIdx)
	natIdx := pool.AddNameAndType(methodNameIdx, descIdx)
	methodrefIdx := pool.AddMethodref(classIdx, natIdx)

	userMethod := &classfile.MethodInfo{Name: "helper", Descriptor: "(I)I"}
	cf := &classfile.ClassFile{
		ConstantPool: pool,
		Methods:      map[string]*classfile.MethodInfo{"helper": userMethod},
	}

	resolved, m, err := ResolveMethod(pool, cf, methodrefIdx)
	if err != nil {
		t.Fatalf("ResolveMethod: %v", err)
	}
	if m != userMethod {
		t.Errorf("ResolveMethod: expected user method precedence, got %v (resolved=%v)", m, resolved)
	}
}

func TestCountMethodParameters(t *testing.T) {
	cases := map[string]int{
		"()V":                     0,
		"(I)V":                    1,
		"(II)I":                   2,
		"(Ljava/lang/String;)V":   1,
		"(ILjava/lang/String;D)V": 3,
	}
	for descriptor, want := range cases {
		if got := CountMethodParameters(descriptor); got != want {
			t.Errorf("CountMethodParameters(%q): got %d, want %d", descriptor, got, want)
		}
	}
}

func TestResolveStaticFieldSystemStreams(t *testing.T) {
	pool := classfile.NewConstantPool()
	systemNameIdx := pool.AddUtf8("java/lang/System")
	outFieldIdx := pool.AddUtf8("out")
	descIdx := pool.AddUtf8("Ljava/io/PrintStream;")
	systemClass := pool.AddClass(systemNameIdx)
	natIdx := pool.AddNameAndType(outFieldIdx, descIdx)
	fieldrefIdx := pool.AddFieldref(systemClass, natIdx)

	kind, err := ResolveStaticField(pool, fieldrefIdx)
	if err != nil {
		t.Fatalf("ResolveStaticField: %v", err)
	}
	if kind != FieldSystemOut {
		t.Errorf("ResolveStaticField(System.out): got %v, want FieldSystemOut", kind)
	}
}
