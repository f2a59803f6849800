package coder

import (
	"bytes"
	"testing"
)

func TestDeltaPropertiesRoundTrip(t *testing.T) {
	cases := []int{1, 2, 16, 256}
	for _, distance := range cases {
		props := deltaProperties(CoderConfig{DeltaDistance: distance})
		got, err := deltaDistance(props)
		if err != nil {
			t.Fatalf("distance %d: %v", distance, err)
		}
		if got != distance {
			t.Fatalf("distance %d round tripped to %d", distance, got)
		}
	}
}

func TestLzma2DictSizeRoundTrip(t *testing.T) {
	sizes := []uint32{1 << 16, 1 << 20, 24 << 20, 64 << 20, 1 << 30}
	for _, dict := range sizes {
		b := dictSizeToLzma2Byte(dict)
		got := lzma2DictSize(b)
		if got < dict {
			t.Fatalf("dict size %d packed to byte %d, unpacked to %d (smaller than original)", dict, b, got)
		}
	}
}

func TestPpmdPropertiesRoundTrip(t *testing.T) {
	props := ppmdProperties(CoderConfig{PpmdOrder: 8, PpmdMemSize: 32 << 20})
	order, memSize, err := ppmdOrderAndMemSize(props)
	if err != nil {
		t.Fatal(err)
	}
	if order != 8 {
		t.Fatalf("order = %d, want 8", order)
	}
	if memSize != 32<<20 {
		t.Fatalf("memSize = %d, want %d", memSize, 32<<20)
	}
}

func TestAesPropertiesRoundTrip(t *testing.T) {
	cfg := CoderConfig{
		NumCyclesPower: 19,
		Salt:           []byte{1, 2, 3, 4},
		IV:             []byte{5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}
	props := aesProperties(cfg)

	power, salt, iv, err := aesSaltAndIV(props)
	if err != nil {
		t.Fatal(err)
	}
	if power != cfg.NumCyclesPower {
		t.Fatalf("power = %d, want %d", power, cfg.NumCyclesPower)
	}
	if !bytes.Equal(salt, cfg.Salt) {
		t.Fatalf("salt = %v, want %v", salt, cfg.Salt)
	}
	if !bytes.Equal(iv, cfg.IV) {
		t.Fatalf("iv = %v, want %v", iv, cfg.IV)
	}
}

func TestAesPropertiesFixedSize(t *testing.T) {
	// spec.md §4.5's concrete wire shape: 16-byte salt, 16-byte IV, second
	// properties byte packs to exactly 0xFF.
	cfg := CoderConfig{NumCyclesPower: 18, Salt: make([]byte, 16), IV: make([]byte, 16)}
	props := aesProperties(cfg)

	if props[1] != 0xFF {
		t.Fatalf("second properties byte = %#x, want 0xFF for 16/16 salt/IV", props[1])
	}

	power, salt, iv, err := aesSaltAndIV(props)
	if err != nil {
		t.Fatal(err)
	}
	if power != 18 {
		t.Fatalf("power = %d, want 18", power)
	}
	if len(salt) != 16 {
		t.Fatalf("salt length = %d, want 16", len(salt))
	}
	if len(iv) != 16 {
		t.Fatalf("iv length = %d, want 16", len(iv))
	}
}
