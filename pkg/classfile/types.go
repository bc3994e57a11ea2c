// Package classfile implements the constant pool, instruction set, and the
// reader/writer for the subset of the Java class-file binary format this
// engine executes. Branch offsets are instruction-stream indices rather
// than byte-relative offsets, so the class files Write produces branch
// correctly only when read back by this package's Parse.
package classfile

import "github.com/tangled-dice/dicejvm/pkg/rtfault"

// Access flags used by the writer; the reader accepts but ignores others.
const (
	AccPublic = 0x0001
	AccStatic = 0x0008
	AccSuper  = 0x0020
)

// Constant pool tags, numbered exactly per the JVM specification.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// ConstantPoolEntry is implemented by every constant pool variant.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct{ Value string }

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct{ Value int32 }

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct{ Value float32 }

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct{ Value int64 }

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct{ Value float64 }

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct{ NameIndex uint16 }

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct{ StringIndex uint16 }

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// Placeholder occupies the second slot after a Long/Double, and the slot
// produced by a parsed-but-unmodeled MethodHandle/MethodType/Dynamic/
// InvokeDynamic entry. It is never addressable.
type Placeholder struct{ tag uint8 }

func (c *Placeholder) Tag() uint8 { return c.tag }

// maxPoolEntries is the JVM's constant_pool_count ceiling; the count itself
// is entries+1, so the largest representable count is 65535.
const maxPoolEntries = 65534

// ConstantPool is a 1-based, growable table of constant pool entries.
// Index 0 is reserved and unused, matching the JVM's own indexing.
type ConstantPool struct {
	entries []ConstantPoolEntry
}

// NewConstantPool returns an empty pool with the reserved index-0 slot.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]ConstantPoolEntry, 1)}
}

// Entries returns the full 1-indexed backing slice, including the unused
// index 0 and any Placeholder slots.
func (p *ConstantPool) Entries() []ConstantPoolEntry { return p.entries }

// Len returns the number of addressable slots, i.e. len(Entries())-1.
func (p *ConstantPool) Len() int { return len(p.entries) - 1 }

func (p *ConstantPool) append(e ConstantPoolEntry) int {
	if len(p.entries) > maxPoolEntries {
		panic("constant pool exceeds 65535 entries")
	}
	p.entries = append(p.entries, e)
	return len(p.entries) - 1
}

func (p *ConstantPool) AddUtf8(v string) uint16 { return uint16(p.append(&ConstantUtf8{Value: v})) }

func (p *ConstantPool) AddInteger(v int32) uint16 { return uint16(p.append(&ConstantInteger{Value: v})) }

func (p *ConstantPool) AddFloat(v float32) uint16 { return uint16(p.append(&ConstantFloat{Value: v})) }

// AddLong appends v followed by a Placeholder consuming the next slot, and
// returns the index of v (the placeholder is unaddressable).
func (p *ConstantPool) AddLong(v int64) uint16 {
	idx := p.append(&ConstantLong{Value: v})
	p.append(&Placeholder{tag: TagLong})
	return uint16(idx)
}

// AddDouble appends v followed by a Placeholder, mirroring AddLong.
func (p *ConstantPool) AddDouble(v float64) uint16 {
	idx := p.append(&ConstantDouble{Value: v})
	p.append(&Placeholder{tag: TagDouble})
	return uint16(idx)
}

func (p *ConstantPool) AddClass(nameIndex uint16) uint16 {
	return uint16(p.append(&ConstantClass{NameIndex: nameIndex}))
}

func (p *ConstantPool) AddString(utf8Index uint16) uint16 {
	return uint16(p.append(&ConstantString{StringIndex: utf8Index}))
}

func (p *ConstantPool) AddFieldref(classIndex, natIndex uint16) uint16 {
	return uint16(p.append(&ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}))
}

func (p *ConstantPool) AddMethodref(classIndex, natIndex uint16) uint16 {
	return uint16(p.append(&ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}))
}

func (p *ConstantPool) AddNameAndType(nameIndex, descIndex uint16) uint16 {
	return uint16(p.append(&ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}))
}

func (p *ConstantPool) AddPlaceholder(tag uint8) uint16 {
	return uint16(p.append(&Placeholder{tag: tag}))
}

func (p *ConstantPool) at(index uint16) (ConstantPoolEntry, error) {
	if int(index) >= len(p.entries) || p.entries[index] == nil {
		return nil, rtfault.New(rtfault.InvalidStackState)
	}
	return p.entries[index], nil
}

// Utf8 returns the string at index, or an error if index is not a Utf8.
func (p *ConstantPool) Utf8(index uint16) (string, error) {
	e, err := p.at(index)
	if err != nil {
		return "", err
	}
	u, ok := e.(*ConstantUtf8)
	if !ok {
		return "", rtfault.New(rtfault.InvalidStackState)
	}
	return u.Value, nil
}

// ClassName returns the name of the Utf8 a Class entry points at.
func (p *ConstantPool) ClassName(classIndex uint16) (string, error) {
	e, err := p.at(classIndex)
	if err != nil {
		return "", err
	}
	c, ok := e.(*ConstantClass)
	if !ok {
		return "", rtfault.New(rtfault.InvalidStackState)
	}
	return p.Utf8(c.NameIndex)
}

// NameAndType resolves a CONSTANT_NameAndType entry to its two strings.
func (p *ConstantPool) NameAndType(index uint16) (name, descriptor string, err error) {
	e, err := p.at(index)
	if err != nil {
		return "", "", err
	}
	nat, ok := e.(*ConstantNameAndType)
	if !ok {
		return "", "", rtfault.New(rtfault.InvalidStackState)
	}
	name, err = p.Utf8(nat.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = p.Utf8(nat.DescriptorIndex)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MethodRefInfo is a resolved (class, name, descriptor) triple.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
}

// Methodref resolves a CONSTANT_Methodref (or InterfaceMethodref, which has
// the identical layout) entry to its triple.
func (p *ConstantPool) Methodref(index uint16) (*MethodRefInfo, error) {
	e, err := p.at(index)
	if err != nil {
		return nil, err
	}
	var classIndex, natIndex uint16
	switch m := e.(type) {
	case *ConstantMethodref:
		classIndex, natIndex = m.ClassIndex, m.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIndex, natIndex = m.ClassIndex, m.NameAndTypeIndex
	default:
		return nil, rtfault.New(rtfault.InvalidStackState)
	}
	className, err := p.ClassName(classIndex)
	if err != nil {
		return nil, err
	}
	name, descriptor, err := p.NameAndType(natIndex)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: className, MethodName: name, Descriptor: descriptor}, nil
}

// FieldRefInfo is a resolved (class, name, descriptor) triple for a field.
type FieldRefInfo struct {
	ClassName  string
	FieldName  string
	Descriptor string
}

// Fieldref resolves a CONSTANT_Fieldref entry to its triple.
func (p *ConstantPool) Fieldref(index uint16) (*FieldRefInfo, error) {
	e, err := p.at(index)
	if err != nil {
		return nil, err
	}
	f, ok := e.(*ConstantFieldref)
	if !ok {
		return nil, rtfault.New(rtfault.InvalidStackState)
	}
	className, err := p.ClassName(f.ClassIndex)
	if err != nil {
		return nil, err
	}
	name, descriptor, err := p.NameAndType(f.NameAndTypeIndex)
	if err != nil {
		return nil, err
	}
	return &FieldRefInfo{ClassName: className, FieldName: name, Descriptor: descriptor}, nil
}

// Entry returns the raw entry at index, for Ldc/Ldc2W.
func (p *ConstantPool) Entry(index uint16) (ConstantPoolEntry, error) {
	return p.at(index)
}

// MethodInfo is a parsed or synthesized method body.
type MethodInfo struct {
	Name       string
	Descriptor string
	Bytecode   []Instruction
	MaxLocals  uint16
	MaxStack   uint16
}

// ClassFile is a parsed or generated class, reduced to what the interpreter
// and writer need: the pool and a lookup of method bodies by name.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Methods      map[string]*MethodInfo

	MainMethod *MethodInfo
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.ConstantPool.ClassName(cf.ThisClass)
}
