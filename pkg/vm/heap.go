package vm

// JObject is a heap object: an intrinsic class name and its fields. This
// engine allocates PrintStream receivers and StringBuilder instances this
// way; user classes are never instantiated beyond New's placeholder.
type JObject struct {
	ClassName string
	Fields    map[string]Value
}

// Heap is the arena-indexed object store plus the string-data side table,
// both owned exclusively by a VM instance (spec §5 "shared resources").
// Object ids are monotonically issued and never reclaimed.
type Heap struct {
	objects map[int]*JObject
	strings map[int]string
	nextID  int
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{objects: map[int]*JObject{}, strings: map[int]string{}}
}

// NewObject allocates a fresh JObject and returns its id.
func (h *Heap) NewObject(className string) int {
	id := h.nextID
	h.nextID++
	h.objects[id] = &JObject{ClassName: className, Fields: map[string]Value{}}
	return id
}

// NewString interns text as a heap-backed java/lang/String and returns its
// object id; the content lives in the string-data table, per spec §3.
func (h *Heap) NewString(text string) int {
	id := h.NewObject("java/lang/String")
	h.strings[id] = text
	return id
}

// Object looks up a heap object by id; ok is false for an unknown or null id.
func (h *Heap) Object(id int) (*JObject, bool) {
	o, ok := h.objects[id]
	return o, ok
}

// String looks up string content by heap id.
func (h *Heap) String(id int) (string, bool) {
	s, ok := h.strings[id]
	return s, ok
}

// SetString overwrites the string content stored at id, for operations
// like StringBuilder.append that mutate in place.
func (h *Heap) SetString(id int, text string) { h.strings[id] = text }
