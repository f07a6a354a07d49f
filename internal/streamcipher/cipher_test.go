package streamcipher

import (
	"bytes"
	"testing"
)

func TestCipherEncryptDecryptRoundTrip(t *testing.T) {
	ticket := bytes.Repeat([]byte{0x42}, 16)
	send := SendState(ticket)
	recv := ReceiveState(ticket) // derived from the same ticket but a different tag

	plain := []byte("the rain in wildspace falls mainly on the plain")
	msg := append([]byte(nil), plain...)

	send.Encrypt(msg)
	if bytes.Equal(msg, plain) {
		t.Fatal("Encrypt did not change the plaintext")
	}

	// Decrypting with the wrong-direction state must not recover the
	// plaintext — send/receive states are independent even though both
	// come from the same ticket.
	wrongDecrypt := append([]byte(nil), msg...)
	recv.Decrypt(wrongDecrypt)
	if bytes.Equal(wrongDecrypt, plain) {
		t.Fatal("cross-direction decrypt unexpectedly recovered plaintext")
	}
}

func TestCipherSymmetricPerDirection(t *testing.T) {
	ticket := bytes.Repeat([]byte{0x07}, 16)
	encState := SendState(ticket)
	decState := SendState(ticket)

	plain := []byte("ServerHelloRealm payload bytes go here for the round trip test")
	msg := append([]byte(nil), plain...)

	encState.Encrypt(msg)
	decState.Decrypt(msg)

	if !bytes.Equal(msg, plain) {
		t.Fatalf("round trip mismatch: got %q want %q", msg, plain)
	}
}

func TestCipherAdvancesAcrossCalls(t *testing.T) {
	ticket := bytes.Repeat([]byte{0x11}, 16)
	enc := SendState(ticket)
	dec := SendState(ticket)

	first := []byte("first packet body")
	second := []byte("second packet body, different length")

	f1 := append([]byte(nil), first...)
	enc.Encrypt(f1)
	s1 := append([]byte(nil), second...)
	enc.Encrypt(s1)

	// A decrypt state that only ever saw the second ciphertext, skipping
	// the first, must not recover the second plaintext: state is
	// strictly sequential, never rewound.
	out := append([]byte(nil), s1...)
	dec.Decrypt(out)
	if bytes.Equal(out, second) {
		t.Fatal("decrypting out of sequence unexpectedly recovered plaintext")
	}

	// Decrypting in the same sequence does recover both.
	dec2 := SendState(ticket)
	d1 := append([]byte(nil), f1...)
	dec2.Decrypt(d1)
	if !bytes.Equal(d1, first) {
		t.Fatalf("first packet mismatch: got %q want %q", d1, first)
	}
	d2 := append([]byte(nil), s1...)
	dec2.Decrypt(d2)
	if !bytes.Equal(d2, second) {
		t.Fatalf("second packet mismatch: got %q want %q", d2, second)
	}
}

func TestDeriveKeyDifferentTagsDiffer(t *testing.T) {
	ticket := bytes.Repeat([]byte{0x99}, 16)
	sendKey := DeriveKey(ticket, sendTag)
	recvKey := DeriveKey(ticket, recvTag)
	if sendKey == recvKey {
		t.Fatal("send and receive keys must differ for the same ticket")
	}
}
