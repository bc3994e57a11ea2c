package vm

import "testing"

func TestHeapNewObject(t *testing.T) {
	h := NewHeap()
	id := h.NewObject("java/io/PrintStream")

	obj, ok := h.Object(id)
	if !ok {
		t.Fatal("Object(id): not found")
	}
	if obj.ClassName != "java/io/PrintStream" {
		t.Errorf("ClassName: got %q, want %q", obj.ClassName, "java/io/PrintStream")
	}
}

func TestHeapStringRoundTrip(t *testing.T) {
	h := NewHeap()
	id := h.NewString("hello")

	s, ok := h.String(id)
	if !ok || s != "hello" {
		t.Errorf("String(id): got (%q, %v), want (%q, true)", s, ok, "hello")
	}

	h.SetString(id, "hello world")
	s, ok = h.String(id)
	if !ok || s != "hello world" {
		t.Errorf("String(id) after SetString: got (%q, %v), want (%q, true)", s, ok, "hello world")
	}
}

func TestHeapDistinctIDs(t *testing.T) {
	h := NewHeap()
	a := h.NewObject("A")
	b := h.NewObject("B")
	if a == b {
		t.Error("two NewObject calls returned the same id")
	}
}

func TestHeapUnknownID(t *testing.T) {
	h := NewHeap()
	if _, ok := h.Object(999); ok {
		t.Error("Object(999) on empty heap: want ok=false")
	}
	if _, ok := h.String(999); ok {
		t.Error("String(999) on empty heap: want ok=false")
	}
}
