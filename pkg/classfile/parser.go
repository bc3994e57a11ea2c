package classfile

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/tangled-dice/dicejvm/pkg/rtfault"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from r per spec §4.2 and returns the parsed
// class plus any non-fatal decoder warnings (unknown opcodes).
func Parse(r io.Reader) (*ClassFile, []string, error) {
	cf := &ClassFile{Methods: map[string]*MethodInfo{}}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, nil, errors.Wrap(err, "reading magic number")
	}
	if magic != classMagic {
		return nil, nil, errors.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, nil, errors.Wrap(err, "reading minor version")
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, nil, errors.Wrap(err, "reading major version")
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading constant pool count")
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing constant pool")
	}
	cf.ConstantPool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, nil, errors.Wrap(err, "reading access flags")
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, nil, errors.Wrap(err, "reading this_class")
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, nil, errors.Wrap(err, "reading super_class")
	}

	// Interfaces: skipped per spec §4.2 step 5.
	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading interfaces count")
	}
	if err := skipN(r, int64(interfacesCount)*2); err != nil {
		return nil, nil, errors.Wrap(err, "skipping interfaces")
	}

	// Fields: skipped per spec §4.2 step 6.
	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading fields count")
	}
	for i := uint16(0); i < fieldsCount; i++ {
		if err := skipFieldOrMethodShell(r, pool); err != nil {
			return nil, nil, errors.Wrapf(err, "skipping field %d", i)
		}
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading methods count")
	}
	var warnings []string
	var mainCandidates []*MethodInfo
	for i := uint16(0); i < methodsCount; i++ {
		mi, mWarnings, err := parseMethod(r, pool)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parsing method %d", i)
		}
		warnings = append(warnings, mWarnings...)
		if mi.Bytecode != nil {
			cf.Methods[mi.Name] = mi
		}
		if mi.Name == "main" && (mi.Descriptor == "()V" || mi.Descriptor == "([Ljava/lang/String;)V") {
			mainCandidates = append(mainCandidates, mi)
		}
	}
	cf.MainMethod = selectMainMethod(mainCandidates)

	// Class-level attributes: skipped entirely, they carry nothing this
	// engine's interpreter or writer consult.
	var classAttrCount uint16
	if err := binary.Read(r, binary.BigEndian, &classAttrCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading class attributes count")
	}
	for i := uint16(0); i < classAttrCount; i++ {
		if err := skipAttribute(r); err != nil {
			return nil, nil, errors.Wrapf(err, "skipping class attribute %d", i)
		}
	}

	return cf, warnings, nil
}

// selectMainMethod prefers descriptor ()V (Kotlin-style) over
// ([Ljava/lang/String;)V (Java-style); ties otherwise keep the first
// encountered, per spec §3 / §9's open-question resolution.
func selectMainMethod(candidates []*MethodInfo) *MethodInfo {
	for _, m := range candidates {
		if m.Descriptor == "()V" {
			return m
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

func skipN(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}

// skipFieldOrMethodShell consumes one field_info structure: access flags,
// name index, descriptor index, then its attributes (length-prefix
// skipped). Fields carry no behavior this engine models.
func skipFieldOrMethodShell(r io.Reader, pool *ConstantPool) error {
	var accessFlags, nameIndex, descIndex, attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return err
	}
	for i := uint16(0); i < attrCount; i++ {
		if err := skipAttribute(r); err != nil {
			return err
		}
	}
	return nil
}

func skipAttribute(r io.Reader) error {
	var nameIndex uint16
	if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
		return err
	}
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return err
	}
	return skipN(r, int64(length))
}

// parseMethod reads one method_info, parsing its Code attribute (if any)
// into a decoded instruction stream and skipping everything else,
// including the exception table, per spec §4.2 step 7.
func parseMethod(r io.Reader, pool *ConstantPool) (*MethodInfo, []string, error) {
	var accessFlags, nameIndex, descIndex, attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
		return nil, nil, errors.Wrap(err, "reading access flags")
	}
	if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
		return nil, nil, errors.Wrap(err, "reading name index")
	}
	if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
		return nil, nil, errors.Wrap(err, "reading descriptor index")
	}
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading attributes count")
	}

	name, err := pool.Utf8(nameIndex)
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolving method name")
	}
	descriptor, err := pool.Utf8(descIndex)
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolving method descriptor")
	}

	mi := &MethodInfo{Name: name, Descriptor: descriptor}
	var warnings []string

	for i := uint16(0); i < attrCount; i++ {
		var attrNameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &attrNameIndex); err != nil {
			return nil, nil, errors.Wrap(err, "reading attribute name index")
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, nil, errors.Wrap(err, "reading attribute length")
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, nil, errors.Wrap(err, "reading attribute data")
		}
		attrName, err := pool.Utf8(attrNameIndex)
		if err != nil {
			continue // unresolvable attribute name: skip, matching the reader's skip-unknown policy
		}
		if attrName != "Code" {
			continue
		}
		maxStack, maxLocals, code, codeWarnings, err := parseCodeAttribute(data)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parsing Code attribute for method %s", name)
		}
		mi.MaxStack = maxStack
		mi.MaxLocals = maxLocals
		mi.Bytecode = code
		warnings = append(warnings, codeWarnings...)
	}

	return mi, warnings, nil
}

// parseCodeAttribute reads max_stack, max_locals, code_length, the code
// bytes, and then discards the exception table and nested attributes,
// never reading past the attribute's declared length.
func parseCodeAttribute(data []byte) (maxStack, maxLocals uint16, code []Instruction, warnings []string, err error) {
	if len(data) < 8 {
		return 0, 0, nil, nil, errors.Errorf("Code attribute too short: %d bytes", len(data))
	}
	maxStack = binary.BigEndian.Uint16(data[0:2])
	maxLocals = binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])
	if uint64(len(data)) < 8+uint64(codeLength) {
		return 0, 0, nil, nil, errors.Errorf("Code attribute data too short for code_length %d", codeLength)
	}
	raw := data[8 : 8+codeLength]
	code, warnings, err = ParseBytecode(raw)
	return maxStack, maxLocals, code, warnings, err
}

// parseConstantPool reads constant_pool_count-1 entries, 1-indexed per
// spec §3/§4.2 step 3.
func parseConstantPool(r io.Reader, count uint16) (*ConstantPool, error) {
	pool := &ConstantPool{entries: make([]ConstantPoolEntry, count)}

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, errors.Wrapf(err, "reading constant pool tag at index %d", i)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, errors.Wrapf(err, "reading Utf8 length at index %d", i)
			}
			raw := make([]byte, length)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, errors.Wrapf(err, "reading Utf8 bytes at index %d", i)
			}
			pool.entries[i] = &ConstantUtf8{Value: toValidUTF8(raw)}

		case TagInteger:
			var v int32
			if err := binary.Read(r, binary.BigEndian, &v); err != nil {
				return nil, errors.Wrapf(err, "reading Integer at index %d", i)
			}
			pool.entries[i] = &ConstantInteger{Value: v}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, errors.Wrapf(err, "reading Float at index %d", i)
			}
			pool.entries[i] = &ConstantFloat{Value: math.Float32frombits(bits)}

		case TagLong:
			var v int64
			if err := binary.Read(r, binary.BigEndian, &v); err != nil {
				return nil, errors.Wrapf(err, "reading Long at index %d", i)
			}
			pool.entries[i] = &ConstantLong{Value: v}
			i++
			if i < count {
				pool.entries[i] = &Placeholder{tag: TagLong}
			}

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, errors.Wrapf(err, "reading Double at index %d", i)
			}
			pool.entries[i] = &ConstantDouble{Value: math.Float64frombits(bits)}
			i++
			if i < count {
				pool.entries[i] = &Placeholder{tag: TagDouble}
			}

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, errors.Wrapf(err, "reading Class at index %d", i)
			}
			pool.entries[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, errors.Wrapf(err, "reading String at index %d", i)
			}
			pool.entries[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref:
			classIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, errors.Wrapf(err, "reading Fieldref at index %d", i)
			}
			pool.entries[i] = &ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagMethodref:
			classIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, errors.Wrapf(err, "reading Methodref at index %d", i)
			}
			pool.entries[i] = &ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagInterfaceMethodref:
			classIndex, natIndex, err := readTwoU16(r)
			if err != nil {
				return nil, errors.Wrapf(err, "reading InterfaceMethodref at index %d", i)
			}
			pool.entries[i] = &ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagNameAndType:
			nameIndex, descIndex, err := readTwoU16(r)
			if err != nil {
				return nil, errors.Wrapf(err, "reading NameAndType at index %d", i)
			}
			pool.entries[i] = &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle:
			if err := skipN(r, 3); err != nil {
				return nil, errors.Wrapf(err, "reading MethodHandle at index %d", i)
			}
			pool.entries[i] = &Placeholder{tag: tag}

		case TagMethodType:
			if err := skipN(r, 2); err != nil {
				return nil, errors.Wrapf(err, "reading MethodType at index %d", i)
			}
			pool.entries[i] = &Placeholder{tag: tag}

		case TagDynamic, TagInvokeDynamic:
			if err := skipN(r, 4); err != nil {
				return nil, errors.Wrapf(err, "reading Dynamic/InvokeDynamic at index %d", i)
			}
			pool.entries[i] = &Placeholder{tag: tag}

		default:
			return nil, rtfault.NewUnknownConstantPoolTag(tag, int(i))
		}
	}

	return pool, nil
}

func readTwoU16(r io.Reader) (a, b uint16, err error) {
	if err = binary.Read(r, binary.BigEndian, &a); err != nil {
		return 0, 0, err
	}
	if err = binary.Read(r, binary.BigEndian, &b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// toValidUTF8 performs lossy decoding: invalid byte sequences are replaced
// rather than rejected, since this engine does not implement the JVM's
// modified-UTF-8 variant (spec §4.2 invariant, §1 non-goals).
func toValidUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return string([]rune(string(raw)))
}
