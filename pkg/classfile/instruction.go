package classfile

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Op identifies an instruction variant by its class-file opcode byte. The
// numbering is the real JVM's, except that Lconst0 is decoded from 0x0B
// (the JVM's fconst_0) rather than 0x09.
type Op uint8

const (
	OpNop Op = 0x00

	OpIconstM1 Op = 0x02
	OpIconst0  Op = 0x03
	OpIconst1  Op = 0x04
	OpIconst2  Op = 0x05
	OpIconst3  Op = 0x06
	OpIconst4  Op = 0x07
	OpIconst5  Op = 0x08

	OpLconst1 Op = 0x0A
	OpLconst0 Op = 0x0B

	OpDconst0 Op = 0x0E
	OpDconst1 Op = 0x0F

	OpBipush Op = 0x10
	OpSipush Op = 0x11
	OpLdc    Op = 0x12
	OpLdc2W  Op = 0x14

	OpIload Op = 0x15
	OpLload Op = 0x16
	OpDload Op = 0x18
	OpAload Op = 0x19

	OpIload0 Op = 0x1A
	OpIload1 Op = 0x1B
	OpIload2 Op = 0x1C
	OpIload3 Op = 0x1D

	OpLload0 Op = 0x1E
	OpLload1 Op = 0x1F
	OpLload2 Op = 0x20
	OpLload3 Op = 0x21

	OpDload0 Op = 0x26
	OpDload1 Op = 0x27
	OpDload2 Op = 0x28
	OpDload3 Op = 0x29

	OpAload0 Op = 0x2A
	OpAload1 Op = 0x2B
	OpAload2 Op = 0x2C
	OpAload3 Op = 0x2D

	OpIstore Op = 0x36
	OpLstore Op = 0x37
	OpDstore Op = 0x39
	OpAstore Op = 0x3A

	OpIstore0 Op = 0x3B
	OpIstore1 Op = 0x3C
	OpIstore2 Op = 0x3D
	OpIstore3 Op = 0x3E

	OpLstore0 Op = 0x3F
	OpLstore1 Op = 0x40
	OpLstore2 Op = 0x41
	OpLstore3 Op = 0x42

	OpDstore0 Op = 0x47
	OpDstore1 Op = 0x48
	OpDstore2 Op = 0x49
	OpDstore3 Op = 0x4A

	OpAstore0 Op = 0x4B
	OpAstore1 Op = 0x4C
	OpAstore2 Op = 0x4D
	OpAstore3 Op = 0x4E

	OpPop  Op = 0x57
	OpDup  Op = 0x59
	OpSwap Op = 0x5F

	OpIadd Op = 0x60
	OpDadd Op = 0x63
	OpIsub Op = 0x64
	OpDsub Op = 0x67
	OpImul Op = 0x68
	OpDmul Op = 0x6B
	OpIdiv Op = 0x6C
	OpDdiv Op = 0x6F
	OpIrem Op = 0x70

	OpI2d Op = 0x87
	OpD2i Op = 0x8E

	OpIfeq Op = 0x99
	OpIfne Op = 0x9A
	OpIflt Op = 0x9B
	OpIfge Op = 0x9C
	OpIfgt Op = 0x9D
	OpIfle Op = 0x9E

	OpGoto Op = 0xA7

	OpIreturn Op = 0xAC
	OpReturn  Op = 0xB1

	OpGetstatic     Op = 0xB2
	OpInvokevirtual Op = 0xB6
	OpInvokespecial Op = 0xB7
	OpInvokestatic  Op = 0xB8
	OpInvokedynamic Op = 0xBA
	OpNew           Op = 0xBB
)

// Instruction is a decoded opcode with its immediate, if any. Imm holds
// a u8 local index, an i8 (Bipush) or i16 (Sipush) push constant, or a
// constant-pool / branch-target index (u8 for Ldc, u16 otherwise), sign-
// or zero-extended as the opcode dictates.
type Instruction struct {
	Op  Op
	Imm int32
}

// immWidth reports how many immediate bytes follow an opcode, and whether
// they hold a signed constant (Bipush, Sipush) as opposed to an unsigned
// index.
func immWidth(op Op) (width int, signed bool) {
	switch op {
	case OpBipush:
		return 1, true
	case OpSipush:
		return 2, true
	case OpLdc:
		return 1, false
	case OpLdc2W, OpGetstatic, OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpInvokedynamic, OpNew, OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle, OpGoto:
		return 2, false
	case OpIload, OpLload, OpDload, OpAload, OpIstore, OpLstore, OpDstore, OpAstore:
		return 1, false
	default:
		return 0, false
	}
}

// ParseBytecode decodes a method's raw code bytes into an instruction
// stream. Unknown opcodes are reported as warnings and skipped without
// consuming any immediate bytes, per the engine's documented divergence
// from a conformant decoder (an unrecognised multi-byte opcode will
// misalign everything after it).
func ParseBytecode(code []byte) ([]Instruction, []string, error) {
	var out []Instruction
	var warnings []string
	i := 0
	for i < len(code) {
		op := Op(code[i])
		i++
		width, signed := immWidth(op)
		if width > 0 {
			if i+width > len(code) {
				return nil, warnings, errors.Errorf("truncated immediate for opcode 0x%02X at offset %d", op, i-1)
			}
		}
		var imm int32
		switch width {
		case 1:
			if signed {
				imm = int32(int8(code[i]))
			} else {
				imm = int32(code[i])
			}
			i++
		case 2:
			v := binary.BigEndian.Uint16(code[i : i+2])
			if signed {
				imm = int32(int16(v))
			} else {
				imm = int32(v)
			}
			i += 2
		}

		if !isKnownOp(op) {
			warnings = append(warnings, errors.Errorf("unknown opcode 0x%02X at offset %d", op, i-1-width).Error())
			continue
		}
		out = append(out, Instruction{Op: op, Imm: imm})
	}
	return out, warnings, nil
}

func isKnownOp(op Op) bool {
	switch op {
	case OpNop, OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5,
		OpLconst0, OpLconst1, OpDconst0, OpDconst1,
		OpBipush, OpSipush, OpLdc, OpLdc2W,
		OpIload, OpLload, OpDload, OpAload,
		OpIload0, OpIload1, OpIload2, OpIload3,
		OpLload0, OpLload1, OpLload2, OpLload3,
		OpDload0, OpDload1, OpDload2, OpDload3,
		OpAload0, OpAload1, OpAload2, OpAload3,
		OpIstore, OpLstore, OpDstore, OpAstore,
		OpIstore0, OpIstore1, OpIstore2, OpIstore3,
		OpLstore0, OpLstore1, OpLstore2, OpLstore3,
		OpDstore0, OpDstore1, OpDstore2, OpDstore3,
		OpAstore0, OpAstore1, OpAstore2, OpAstore3,
		OpPop, OpDup, OpSwap,
		OpIadd, OpDadd, OpIsub, OpDsub, OpImul, OpDmul, OpIdiv, OpDdiv, OpIrem,
		OpI2d, OpD2i,
		OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle, OpGoto,
		OpIreturn, OpReturn,
		OpGetstatic, OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokedynamic, OpNew:
		return true
	default:
		return false
	}
}

// EncodeBytecode serializes an instruction stream back to raw code bytes.
// Any instruction whose Op this writer does not know how to emit is
// replaced by Nop, matching the documented writer behavior for unsupported
// instructions.
func EncodeBytecode(ins []Instruction) []byte {
	var buf []byte
	for _, in := range ins {
		width, signed := immWidth(in.Op)
		if !isKnownOp(in.Op) {
			buf = append(buf, byte(OpNop))
			continue
		}
		buf = append(buf, byte(in.Op))
		switch width {
		case 1:
			if signed {
				buf = append(buf, byte(int8(in.Imm)))
			} else {
				buf = append(buf, byte(in.Imm))
			}
		case 2:
			var b [2]byte
			if signed {
				binary.BigEndian.PutUint16(b[:], uint16(int16(in.Imm)))
			} else {
				binary.BigEndian.PutUint16(b[:], uint16(in.Imm))
			}
			buf = append(buf, b[:]...)
		}
	}
	return buf
}
