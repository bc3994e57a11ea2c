package vm

import "testing"

func TestFramePushPop(t *testing.T) {
	f := NewFrame(2, nil, nil)

	f.Push(Int(10))
	f.Push(Int(20))
	f.Push(Int(30))

	v, err := f.Pop()
	if err != nil || v.I != 30 {
		t.Errorf("first Pop: got (%v, %v), want (30, nil)", v.I, err)
	}
	v, err = f.Pop()
	if err != nil || v.I != 20 {
		t.Errorf("second Pop: got (%v, %v), want (20, nil)", v.I, err)
	}
	v, err = f.Pop()
	if err != nil || v.I != 10 {
		t.Errorf("third Pop: got (%v, %v), want (10, nil)", v.I, err)
	}
}

func TestFramePopUnderflow(t *testing.T) {
	f := NewFrame(0, nil, nil)
	if _, err := f.Pop(); err == nil {
		t.Error("Pop on empty stack: want error, got nil")
	}
}

func TestFrameLocalsZeroed(t *testing.T) {
	f := NewFrame(3, nil, nil)
	for i := 0; i < 3; i++ {
		v, err := f.GetLocal(i)
		if err != nil {
			t.Fatalf("GetLocal(%d): %v", i, err)
		}
		if v.Kind != KindInt || v.I != 0 {
			t.Errorf("GetLocal(%d): got %+v, want zero Int", i, v)
		}
	}
}

func TestFrameSetLocalGrows(t *testing.T) {
	f := NewFrame(1, nil, nil)
	f.SetLocal(4, Double(3.5))

	v, err := f.GetLocal(4)
	if err != nil {
		t.Fatalf("GetLocal(4): %v", err)
	}
	if v.Kind != KindDouble || v.D != 3.5 {
		t.Errorf("GetLocal(4): got %+v, want Double(3.5)", v)
	}

	// The implicitly-created slots in between take the zero matching the
	// store's own kind (Dstore growth here), not always Int(0).
	v, err = f.GetLocal(2)
	if err != nil {
		t.Fatalf("GetLocal(2): %v", err)
	}
	if v.Kind != KindDouble || v.D != 0 {
		t.Errorf("GetLocal(2) (implicit slot): got %+v, want zero Double", v)
	}
}

func TestFrameSetLocalGrowsReferenceKind(t *testing.T) {
	f := NewFrame(1, nil, nil)
	f.SetLocal(5, Reference(7))

	v, err := f.GetLocal(3)
	if err != nil {
		t.Fatalf("GetLocal(3): %v", err)
	}
	if v.Kind != KindReference || !v.IsNull() {
		t.Errorf("GetLocal(3) (implicit slot from Astore growth): got %+v, want null Reference", v)
	}
}

func TestFrameSetLocalGrowsLongKind(t *testing.T) {
	f := NewFrame(1, nil, nil)
	f.SetLocal(4, Long(42))

	v, err := f.GetLocal(2)
	if err != nil {
		t.Fatalf("GetLocal(2): %v", err)
	}
	if v.Kind != KindLong || v.L != 0 {
		t.Errorf("GetLocal(2) (implicit slot from Lstore growth): got %+v, want zero Long", v)
	}
}

func TestFrameGetLocalOutOfRange(t *testing.T) {
	f := NewFrame(1, nil, nil)
	if _, err := f.GetLocal(-1); err == nil {
		t.Error("GetLocal(-1): want error")
	}
	if _, err := f.GetLocal(5); err == nil {
		t.Error("GetLocal(5) on a 1-local frame: want error")
	}
}
