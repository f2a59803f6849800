package filters

import (
	"bytes"
	"crypto/aes"
	"crypto/rand"
	"io"
	"testing"
)

func TestAESRoundTrip(t *testing.T) {
	salt := make([]byte, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(salt); err != nil {
		t.Fatal(err)
	}
	if _, err := rand.Read(iv); err != nil {
		t.Fatal(err)
	}

	const power = 4 // keep the SHA-256 stretch cheap for a test
	password := "correct horse battery staple"

	plain := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 100)
	// Trim to a whole number of blocks: AESEncrypter.Close zero-pads an
	// incomplete trailing block, which a byte-for-byte comparison can't
	// account for.
	if rem := len(plain) % aes.BlockSize; rem != 0 {
		plain = plain[:len(plain)-rem]
	}

	var ciphertext bytes.Buffer
	enc, err := NewAESEncrypter(&ciphertext, power, salt, iv, password)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewAESDecrypter(bytes.NewReader(ciphertext.Bytes()), power, salt, iv, password)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(plain))
	}
}

func TestAESWrongPasswordProducesGarbage(t *testing.T) {
	salt := bytes.Repeat([]byte{0x11}, aes.BlockSize)
	iv := bytes.Repeat([]byte{0x22}, aes.BlockSize)
	const power = 2

	plain := bytes.Repeat([]byte{0xAB}, aes.BlockSize*4)

	var ciphertext bytes.Buffer
	enc, err := NewAESEncrypter(&ciphertext, power, salt, iv, "right-password")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewAESDecrypter(bytes.NewReader(ciphertext.Bytes()), power, salt, iv, "wrong-password")
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(got, plain) {
		t.Fatal("decryption with the wrong password should not reproduce the plaintext")
	}
}
