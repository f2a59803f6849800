package header

import (
	"bytes"
	"testing"
	"time"
)

func TestNumberRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 0x7f, 0x80, 0xff, 0x3fff, 0x4000, 0x1fffff,
		0xffffffff, 0x7fffffffff, 1 << 40, 1 << 55, ^uint64(0),
	}

	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteNumber(&buf, v); err != nil {
			t.Fatalf("WriteNumber(%d): %v", v, err)
		}

		got, err := ReadNumber(&buf)
		if err != nil {
			t.Fatalf("ReadNumber after WriteNumber(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip of %d produced %d", v, got)
		}
		if buf.Len() != 0 {
			t.Fatalf("WriteNumber(%d) left %d trailing bytes", v, buf.Len())
		}
	}
}

func TestBoolVectorRoundTrip(t *testing.T) {
	cases := [][]bool{
		{},
		{true},
		{false},
		{true, false, true, false, true, false, true, false},
		{true, false, true, false, true, false, true, false, true},
	}

	for _, v := range cases {
		var buf bytes.Buffer
		if err := WriteBoolVector(&buf, v); err != nil {
			t.Fatalf("WriteBoolVector(%v): %v", v, err)
		}

		got, count, err := ReadBoolVector(&buf, len(v))
		if err != nil {
			t.Fatalf("ReadBoolVector after WriteBoolVector(%v): %v", v, err)
		}
		wantCount := 0
		for i := range v {
			if v[i] != got[i] {
				t.Fatalf("bool vector %v round tripped to %v", v, got)
			}
			if v[i] {
				wantCount++
			}
		}
		if count != wantCount {
			t.Fatalf("ReadBoolVector(%v) count = %d, want %d", v, count, wantCount)
		}
	}
}

func TestOptionalBoolVectorAllDefined(t *testing.T) {
	v := []bool{true, true, true}

	var buf bytes.Buffer
	if err := WriteOptionalBoolVector(&buf, v); err != nil {
		t.Fatal(err)
	}
	// allDefined=1 is a single byte; nothing else follows.
	if buf.Len() != 1 {
		t.Fatalf("all-true vector should encode to 1 byte, got %d", buf.Len())
	}

	got, count, err := ReadOptionalBoolVector(&buf, len(v))
	if err != nil {
		t.Fatal(err)
	}
	if count != len(v) {
		t.Fatalf("count = %d, want %d", count, len(v))
	}
	for i := range got {
		if !got[i] {
			t.Fatalf("element %d = false, want true", i)
		}
	}
}

func TestDateTimeVectorRoundTrip(t *testing.T) {
	times := []time.Time{
		time.Date(2023, 5, 1, 12, 30, 0, 0, time.UTC),
		{},
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
	}

	var buf bytes.Buffer
	if err := WriteDateTimeVector(&buf, times); err != nil {
		t.Fatal(err)
	}

	got, err := ReadDateTimeVector(&buf, len(times))
	if err != nil {
		t.Fatal(err)
	}

	for i, want := range times {
		if want.IsZero() {
			if !got[i].IsZero() {
				t.Fatalf("entry %d: want zero time, got %v", i, got[i])
			}
			continue
		}
		if !got[i].Equal(want) {
			t.Fatalf("entry %d: got %v, want %v", i, got[i], want)
		}
	}
}
