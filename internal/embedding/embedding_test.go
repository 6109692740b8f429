package embedding

import (
	"math"
	"testing"
)

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(DefaultDim)

	text := "User user_123 triggered a transaction event with data: amount: 50, currency: USD"
	a, err := e.Embed(text)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := e.Embed(text)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if len(a) != DefaultDim {
		t.Fatalf("expected %d dims, got %d", DefaultDim, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d", i)
		}
	}
}

func TestHashingEmbedder_UnitNorm(t *testing.T) {
	e := NewHashingEmbedder(64)

	vec, err := e.Embed("some event text with a few tokens")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(sum))
	}
}

func TestCosineDistance(t *testing.T) {
	e := NewHashingEmbedder(DefaultDim)

	base, _ := e.Embed("User u1 triggered a transaction event with data: amount: 50, currency: USD, recipient: Merchant_1")
	same, _ := e.Embed("User u1 triggered a transaction event with data: amount: 50, currency: USD, recipient: Merchant_1")
	near, _ := e.Embed("User u1 triggered a transaction event with data: amount: 60, currency: USD, recipient: Merchant_2")
	far, _ := e.Embed("User u9 triggered a system_config event with data: setting: retention_days, value: 0")

	if d := CosineDistance(base, same); d > 1e-6 {
		t.Errorf("identical texts should have ~0 distance, got %f", d)
	}

	dNear := CosineDistance(base, near)
	dFar := CosineDistance(base, far)
	if dNear >= dFar {
		t.Errorf("expected near (%f) < far (%f)", dNear, dFar)
	}

	// Symmetry.
	if d1, d2 := CosineDistance(base, far), CosineDistance(far, base); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func TestCosineDistance_DegenerateInputs(t *testing.T) {
	if d := CosineDistance(nil, nil); d != 1 {
		t.Errorf("empty vectors: got %f, want 1", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0, 0}); d != 1 {
		t.Errorf("mismatched lengths: got %f, want 1", d)
	}
	if d := CosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Errorf("zero norm: got %f, want 1", d)
	}
}
