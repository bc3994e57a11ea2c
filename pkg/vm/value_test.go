package vm

import "testing"

func TestValueCoercions(t *testing.T) {
	if v, err := Int(5).AsInt(); err != nil || v != 5 {
		t.Errorf("Int(5).AsInt(): got (%d, %v)", v, err)
	}
	if v, err := Boolean(true).AsInt(); err != nil || v != 1 {
		t.Errorf("Boolean(true).AsInt(): got (%d, %v), want (1, nil)", v, err)
	}
	if v, err := Int(3).AsDouble(); err != nil || v != 3 {
		t.Errorf("Int(3).AsDouble(): got (%v, %v), want (3, nil)", v, err)
	}
	if _, err := Double(1.5).AsInt(); err == nil {
		t.Error("Double(1.5).AsInt(): want error, double doesn't coerce to int")
	}
}

func TestValueIsNull(t *testing.T) {
	if !NullReference().IsNull() {
		t.Error("NullReference().IsNull(): want true")
	}
	if Reference(0).IsNull() {
		t.Error("Reference(0).IsNull(): want false, 0 is a valid heap id")
	}
}

func TestZeroFor(t *testing.T) {
	if ZeroFor(KindDouble).D != 0 {
		t.Error("ZeroFor(KindDouble): want Double(0)")
	}
	if !ZeroFor(KindReference).IsNull() {
		t.Error("ZeroFor(KindReference): want null reference")
	}
	if ZeroFor(KindInt).I != 0 {
		t.Error("ZeroFor(KindInt): want Int(0)")
	}
}
