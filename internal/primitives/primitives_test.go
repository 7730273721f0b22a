package primitives

import (
	"bytes"
	"testing"
)

func TestScalarRoundTrip(t *testing.T) {
	s, err := RandScalarDefault()
	if err != nil {
		t.Fatalf("rand scalar: %v", err)
	}
	enc := EncodeScalar(&s)
	got, err := DecodeScalar(enc[:])
	if err != nil {
		t.Fatalf("decode scalar: %v", err)
	}
	if !bytes.Equal(enc[:], EncodeScalar(&got)[:]) {
		t.Fatalf("scalar round trip mismatch")
	}
}

func TestScalarAddInvert(t *testing.T) {
	a, _ := RandScalarDefault()
	b, _ := RandScalarDefault()
	sum := AddScalars(&a, &b)
	inv := InvertScalar(&sum)
	product := MulScalars(&sum, &inv)
	var one Scalar
	one.SetInt(1)
	if EncodeScalar(&product) != EncodeScalar(&one) {
		t.Fatalf("s * s^-1 != 1")
	}
}

func TestPointCodec(t *testing.T) {
	k, _ := RandScalarDefault()
	p := ScalarBaseMult(&k)
	enc := EncodePoint(p)
	got, err := DecodePoint(enc[:])
	if err != nil {
		t.Fatalf("decode point: %v", err)
	}
	if !Equal(p, got) {
		t.Fatalf("point round trip mismatch")
	}
}

func TestAddPointsMatchesScalarAdd(t *testing.T) {
	a, _ := RandScalarDefault()
	b, _ := RandScalarDefault()
	pa := ScalarBaseMult(&a)
	pb := ScalarBaseMult(&b)
	sum := AddScalars(&a, &b)
	expected := ScalarBaseMult(&sum)

	got, err := AddPoints(pa, pb)
	if err != nil {
		t.Fatalf("add points: %v", err)
	}
	if !Equal(expected, got) {
		t.Fatalf("(a+b)*G != a*G + b*G")
	}
}

func TestConstantTimeBytesGreater(t *testing.T) {
	var lo, hi [32]byte
	hi[31] = 1
	if ConstantTimeBytesGreater(lo, hi) {
		t.Fatalf("lo should not be greater than hi")
	}
	if !ConstantTimeBytesGreater(hi, lo) {
		t.Fatalf("hi should be greater than lo")
	}
	if ConstantTimeBytesGreater(lo, lo) {
		t.Fatalf("equal values should not compare greater")
	}
}

func TestHashToPrimeIsPrimeAndReproducible(t *testing.T) {
	seed := []byte("child-id-seed")
	p1, c1 := HashToPrime(seed)
	p2, c2 := HashToPrime(seed)
	if c1 != c2 || p1.Cmp(p2) != 0 {
		t.Fatalf("hash to prime not deterministic")
	}
	if !p1.ProbablyPrime(64) {
		t.Fatalf("result not prime")
	}
}

func TestDeriveScalarDeterministic(t *testing.T) {
	secret := []byte("master-shard")
	salt := []byte("sigil/derive")
	info := []byte("m/44'/60'/0'/0'")
	a, err := DeriveScalar(secret, salt, info)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveScalar(secret, salt, info)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if EncodeScalar(&a) != EncodeScalar(&b) {
		t.Fatalf("derivation not deterministic")
	}
}
