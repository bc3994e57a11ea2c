package classfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Write emits the inverse of Parse for a single-method class: magic,
// minor 0, major 52, the constant pool (placeholders omitted, per spec
// §3's "on-the-wire count is entries+1"), fixed access flags, this/super
// class, zero interfaces, zero fields, and exactly one method carrying a
// single Code attribute. Unsupported instructions are replaced by Nop by
// EncodeBytecode.
func Write(w io.Writer, cf *ClassFile) error {
	if cf.MainMethod == nil {
		return errors.New("class file has no main method to write")
	}

	var buf bytes.Buffer
	put16 := func(v uint16) { binary.Write(&buf, binary.BigEndian, v) }
	put32 := func(v uint32) { binary.Write(&buf, binary.BigEndian, v) }

	put32(classMagic)
	put16(0)  // minor version
	put16(52) // major version

	nonPlaceholders := 0
	for _, e := range cf.ConstantPool.entries[1:] {
		if _, ok := e.(*Placeholder); !ok {
			nonPlaceholders++
		}
	}
	put16(uint16(nonPlaceholders + 1))

	for _, e := range cf.ConstantPool.entries[1:] {
		if err := writeConstantPoolEntry(&buf, e); err != nil {
			return errors.Wrap(err, "writing constant pool")
		}
	}

	put16(AccPublic | AccSuper)
	put16(cf.ThisClass)
	put16(cf.SuperClass)

	put16(0) // interfaces count
	put16(0) // fields count
	put16(1) // methods count

	if err := writeMainMethod(&buf, cf); err != nil {
		return errors.Wrap(err, "writing main method")
	}

	put16(0) // class attributes count

	_, err := w.Write(buf.Bytes())
	return err
}

func writeConstantPoolEntry(buf *bytes.Buffer, e ConstantPoolEntry) error {
	if _, ok := e.(*Placeholder); ok {
		return nil // placeholders are never emitted, per spec §3/§4.1
	}
	buf.WriteByte(e.Tag())
	switch v := e.(type) {
	case *ConstantUtf8:
		b := []byte(v.Value)
		binary.Write(buf, binary.BigEndian, uint16(len(b)))
		buf.Write(b)
	case *ConstantInteger:
		binary.Write(buf, binary.BigEndian, v.Value)
	case *ConstantFloat:
		binary.Write(buf, binary.BigEndian, math.Float32bits(v.Value))
	case *ConstantLong:
		binary.Write(buf, binary.BigEndian, v.Value)
	case *ConstantDouble:
		binary.Write(buf, binary.BigEndian, math.Float64bits(v.Value))
	case *ConstantClass:
		binary.Write(buf, binary.BigEndian, v.NameIndex)
	case *ConstantString:
		binary.Write(buf, binary.BigEndian, v.StringIndex)
	case *ConstantFieldref:
		binary.Write(buf, binary.BigEndian, v.ClassIndex)
		binary.Write(buf, binary.BigEndian, v.NameAndTypeIndex)
	case *ConstantMethodref:
		binary.Write(buf, binary.BigEndian, v.ClassIndex)
		binary.Write(buf, binary.BigEndian, v.NameAndTypeIndex)
	case *ConstantInterfaceMethodref:
		binary.Write(buf, binary.BigEndian, v.ClassIndex)
		binary.Write(buf, binary.BigEndian, v.NameAndTypeIndex)
	case *ConstantNameAndType:
		binary.Write(buf, binary.BigEndian, v.NameIndex)
		binary.Write(buf, binary.BigEndian, v.DescriptorIndex)
	default:
		return errors.Errorf("writing unknown constant pool entry type %T", e)
	}
	return nil
}

// writeMainMethod emits the single synthesized method_info with its Code
// attribute. The attribute_length formula (code length + 12) accounts for
// max_stack(2) + max_locals(2) + code_length(4) + exception_table_count(2)
// + attributes_count(2), with zero exception handlers and zero nested
// attributes.
func writeMainMethod(buf *bytes.Buffer, cf *ClassFile) error {
	m := cf.MainMethod
	nameIndex := cf.ConstantPool.mustFindUtf8(m.Name)
	descIndex := cf.ConstantPool.mustFindUtf8(m.Descriptor)
	codeAttrNameIndex := cf.ConstantPool.mustFindUtf8("Code")

	binary.Write(buf, binary.BigEndian, uint16(AccPublic|AccStatic))
	binary.Write(buf, binary.BigEndian, nameIndex)
	binary.Write(buf, binary.BigEndian, descIndex)
	binary.Write(buf, binary.BigEndian, uint16(1)) // attributes count

	binary.Write(buf, binary.BigEndian, codeAttrNameIndex)

	codeBytes := EncodeBytecode(m.Bytecode)
	attrLength := uint32(len(codeBytes)) + 12
	binary.Write(buf, binary.BigEndian, attrLength)

	binary.Write(buf, binary.BigEndian, m.MaxStack)
	binary.Write(buf, binary.BigEndian, m.MaxLocals)
	binary.Write(buf, binary.BigEndian, uint32(len(codeBytes)))
	buf.Write(codeBytes)
	binary.Write(buf, binary.BigEndian, uint16(0)) // exception_table_length
	binary.Write(buf, binary.BigEndian, uint16(0)) // attributes_count

	return nil
}

// mustFindUtf8 returns the index of an existing Utf8 entry with the given
// value. The codegen bridge is expected to have already interned every
// string the writer needs; a missing entry is a programming error in the
// caller, not a recoverable I/O fault.
func (p *ConstantPool) mustFindUtf8(value string) uint16 {
	for i, e := range p.entries {
		if u, ok := e.(*ConstantUtf8); ok && u.Value == value {
			return uint16(i)
		}
	}
	panic("classfile: writer: no Utf8 entry interned for " + value)
}
