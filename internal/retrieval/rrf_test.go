package retrieval

import "testing"

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestFuseDeterministicMerge(t *testing.T) {
	l1 := []RankedItem{{Key: "X"}, {Key: "Y"}, {Key: "Z"}}
	l2 := []RankedItem{{Key: "Z"}, {Key: "Y"}, {Key: "W"}}

	out := Fuse([][]RankedItem{l1, l2}, nil, 60)
	if len(out) != 4 {
		t.Fatalf("expected 4 fused items, got %d", len(out))
	}

	order := []string{out[0].Key, out[1].Key, out[2].Key, out[3].Key}
	want := []string{"Z", "Y", "X", "W"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("rank %d: got %s, want %s (full order %v)", i, order[i], want[i], order)
		}
	}

	byKey := map[string]float64{}
	for _, f := range out {
		byKey[f.Key] = f.RRFScore
	}
	if !approxEqual(byKey["X"], 1.0/61, 1e-9) {
		t.Errorf("X score = %v, want 1/61", byKey["X"])
	}
	if !approxEqual(byKey["W"], 1.0/63, 1e-9) {
		t.Errorf("W score = %v, want 1/63", byKey["W"])
	}
	if !approxEqual(byKey["Y"], 2.0/62, 1e-9) {
		t.Errorf("Y score = %v, want 2/62", byKey["Y"])
	}
	// Z appears at rank 3 in L1 and rank 1 in L2.
	if !approxEqual(byKey["Z"], 1.0/63+1.0/61, 1e-9) {
		t.Errorf("Z score = %v, want 1/63+1/61", byKey["Z"])
	}
	if byKey["Z"] <= byKey["Y"] {
		t.Errorf("expected Z (%v) to edge out Y (%v)", byKey["Z"], byKey["Y"])
	}
}

func TestFuseWeighted(t *testing.T) {
	l1 := []RankedItem{{Key: "A"}, {Key: "B"}}
	l2 := []RankedItem{{Key: "B"}, {Key: "A"}}

	out := Fuse([][]RankedItem{l1, l2}, []float64{1.0, 0.0}, 60)
	if out[0].Key != "A" {
		t.Fatalf("with L2 weight 0, A (rank 1 in L1) should win, got order %v", out)
	}
}

func TestFuseEmptyInput(t *testing.T) {
	out := Fuse(nil, nil, 60)
	if len(out) != 0 {
		t.Fatalf("expected empty fusion for no lists, got %v", out)
	}
}
