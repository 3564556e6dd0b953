package wire

import "testing"

func TestRoundTripPrimitives(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)
	w.WriteU8(0xAB)
	w.WriteI8(-5)
	w.WriteU16(0xBEEF)
	w.WriteI16(-1234)
	w.WriteU32(0xDEADBEEF)
	w.WriteI32(-123456)
	w.WriteU64(0x1122334455667788)
	w.WriteI64(-1)
	w.WriteF32(3.5)
	w.WriteF64(-2.25)
	w.WriteString("hello, 世界")

	r := NewReader(w.Bytes())

	if b, err := r.ReadBool(); err != nil || b != true {
		t.Fatalf("ReadBool = %v, %v", b, err)
	}
	if v, err := r.ReadU8(); err != nil || v != 0xAB {
		t.Fatalf("ReadU8 = %v, %v", v, err)
	}
	if v, err := r.ReadI8(); err != nil || v != -5 {
		t.Fatalf("ReadI8 = %v, %v", v, err)
	}
	if v, err := r.ReadU16(); err != nil || v != 0xBEEF {
		t.Fatalf("ReadU16 = %v, %v", v, err)
	}
	if v, err := r.ReadI16(); err != nil || v != -1234 {
		t.Fatalf("ReadI16 = %v, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %v, %v", v, err)
	}
	if v, err := r.ReadI32(); err != nil || v != -123456 {
		t.Fatalf("ReadI32 = %v, %v", v, err)
	}
	if v, err := r.ReadU64(); err != nil || v != 0x1122334455667788 {
		t.Fatalf("ReadU64 = %v, %v", v, err)
	}
	if v, err := r.ReadI64(); err != nil || v != -1 {
		t.Fatalf("ReadI64 = %v, %v", v, err)
	}
	if v, err := r.ReadF32(); err != nil || v != 3.5 {
		t.Fatalf("ReadF32 = %v, %v", v, err)
	}
	if v, err := r.ReadF64(); err != nil || v != -2.25 {
		t.Fatalf("ReadF64 = %v, %v", v, err)
	}
	if s, err := r.ReadString(); err != nil || s != "hello, 世界" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestReadTruncated(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 5, 'h', 'i'})
	if _, err := r.ReadString(); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestReadInvalidUTF8(t *testing.T) {
	buf := []byte{0, 0, 0, 1, 0xff}
	r := NewReader(buf)
	if _, err := r.ReadString(); err == nil {
		t.Fatal("expected invalid utf-8 error")
	}
}

func TestBigEndianOnWire(t *testing.T) {
	w := NewWriter()
	w.WriteU32(0x01020304)
	got := w.Bytes()
	want := []byte{0x01, 0x02, 0x03, 0x04}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %x want %x", i, got[i], want[i])
		}
	}
}
