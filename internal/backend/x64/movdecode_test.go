package x64

import "testing"

// TestDecodeMovFastmemStore mirrors spec.md §4.7 scenario 4: "mov [rbx+0x10],
// ecx" encodes as 89 4B 10 and must decode to a 3-byte store of ecx (reg 1)
// through base rbx (reg 3) at displacement 0x10.
func TestDecodeMovFastmemStore(t *testing.T) {
	m, ok := DecodeMov([]byte{0x89, 0x4B, 0x10})
	if !ok {
		t.Fatal("DecodeMov rejected a well-formed store")
	}
	want := Mov{Length: 3, IsLoad: false, OperandSize: 4, Reg: 1, Base: 3, HasBase: true, Disp: 0x10}
	if m != want {
		t.Fatalf("got %+v, want %+v", m, want)
	}
}

func TestDecodeMovFastmemLoadWithRex(t *testing.T) {
	// REX.W + mov rax, [r14+0x20] -> 49 8B 46 20 (REX.W + REX.B, with r14
	// as base).
	m, ok := DecodeMov([]byte{0x49, 0x8B, 0x46, 0x20})
	if !ok {
		t.Fatal("DecodeMov rejected a well-formed REX load")
	}
	if !m.IsLoad || m.OperandSize != 8 || m.Reg != 0 || !m.HasBase || m.Base != 14 || m.Disp != 0x20 {
		t.Fatalf("unexpected decode: %+v", m)
	}
	if m.Length != 4 {
		t.Fatalf("expected length 4, got %d", m.Length)
	}
}

func TestDecodeMovImmediate(t *testing.T) {
	// mov eax, imm32 -> B8 imm32
	m, ok := DecodeMov([]byte{0xB8, 0x78, 0x56, 0x34, 0x12})
	if !ok {
		t.Fatal("DecodeMov rejected a well-formed immediate load")
	}
	if m.Reg != 0 || !m.HasImm || m.Imm != 0x12345678 || m.Length != 5 {
		t.Fatalf("unexpected decode: %+v", m)
	}
}

func TestDecodeMovRejectsUnknownOpcode(t *testing.T) {
	if _, ok := DecodeMov([]byte{0x01, 0xC0}); ok {
		t.Fatal("DecodeMov should reject ADD's opcode 0x01")
	}
}
