package opcode

import (
	"testing"

	"github.com/pedramcode/fibers/internal/vmerr"
)

func TestFromU16Known(t *testing.T) {
	op, err := FromU16(0x0004)
	if err != nil {
		t.Fatalf("FromU16: %v", err)
	}
	if op != ADD {
		t.Fatalf("got %v, want ADD", op)
	}
}

func TestFromU16UnknownFails(t *testing.T) {
	if _, err := FromU16(0xffff); !vmerr.Is(err, vmerr.InvalidOpcode) {
		t.Fatalf("expected InvalidOpcode, got %v", err)
	}
}

func TestStringKnownAndUnknown(t *testing.T) {
	if got := PUSH.String(); got != "PUSH" {
		t.Fatalf("got %q, want PUSH", got)
	}
	if got := Opcode(0xffff).String(); got != "UNKNOWN" {
		t.Fatalf("got %q, want UNKNOWN", got)
	}
}

func TestOperandBytes(t *testing.T) {
	cases := []struct {
		op   Opcode
		want uint64
	}{
		{PUSH, 8}, {JMP, 8}, {JZ, 8}, {JNZ, 8}, {JG, 8}, {JGE, 8}, {JL, 8}, {JLE, 8},
		{MOV, 9},
		{POP, 1}, {INC, 1}, {DEC, 1},
		{ADD, 0}, {SUB, 0}, {DROP, 0}, {DUP, 0}, {SWP, 0},
		{AND, 0}, {OR, 0}, {NOT, 0}, {XOR, 0}, {SHR, 0}, {SHL, 0}, {ROL, 0}, {ROR, 0},
		{HLT, 0}, {YLD, 0},
	}
	for _, c := range cases {
		if got := OperandBytes(c.op); got != c.want {
			t.Fatalf("OperandBytes(%v) = %d, want %d", c.op, got, c.want)
		}
	}
}

func TestRegValid(t *testing.T) {
	valid := []Reg{R0, R1, R2, R3, R4, R5, R6, R7, PC, SP}
	for _, r := range valid {
		if !r.Valid() {
			t.Fatalf("Reg(%d).Valid() = false, want true", r)
		}
	}
	invalid := []Reg{8, 50, 99, 102, 250}
	for _, r := range invalid {
		if r.Valid() {
			t.Fatalf("Reg(%d).Valid() = true, want false", r)
		}
	}
}
