package lattice

import (
	"math"
	"testing"

	"neoplasm/internal/core"
)

func TestDirectionCounts(t *testing.T) {
	cases := []struct {
		coordinate string
		dims       int
		want       int
	}{
		{"neumann", 2, 4},
		{"neumann", 3, 6},
		{"moore", 2, 8},
		{"moore", 3, 26},
		{"hex", 2, 6},
		{"hex", 3, 12},
	}
	for _, c := range cases {
		g, err := New(c.coordinate, c.dims)
		if err != nil {
			t.Fatalf("New(%q, %d): %v", c.coordinate, c.dims, err)
		}
		if got := g.MaxNeighbors(); got != c.want {
			t.Fatalf("%s %dD: %d directions, want %d", c.coordinate, c.dims, got, c.want)
		}
		if got := len(g.Directions()); got != c.want {
			t.Fatalf("%s %dD: len(Directions()) = %d, want %d", c.coordinate, c.dims, got, c.want)
		}
		seen := map[Coord]bool{}
		for _, d := range g.Directions() {
			if d == (Coord{}) {
				t.Fatalf("%s %dD: zero direction", c.coordinate, c.dims)
			}
			if seen[d] {
				t.Fatalf("%s %dD: duplicate direction %v", c.coordinate, c.dims, d)
			}
			seen[d] = true
		}
	}
}

func TestInvalidGeometry(t *testing.T) {
	if _, err := New("torus", 2); err == nil {
		t.Fatal("expected error for unknown coordinate")
	}
	if _, err := New("moore", 4); err == nil {
		t.Fatal("expected error for unsupported dimensions")
	}
}

func TestTwoDimensionalDirectionsStayInPlane(t *testing.T) {
	for _, name := range []string{"neumann", "moore", "hex"} {
		g, err := New(name, 2)
		if err != nil {
			t.Fatal(err)
		}
		for _, d := range g.Directions() {
			if d.Z() != 0 {
				t.Fatalf("%s 2D direction %v leaves the plane", name, d)
			}
		}
	}
}

func TestGraphDistances(t *testing.T) {
	neumann, _ := New("neumann", 3)
	if got := neumann.GraphDistance(Coord{2, -3, 1}); got != 6 {
		t.Fatalf("manhattan distance = %d, want 6", got)
	}
	moore, _ := New("moore", 3)
	if got := moore.GraphDistance(Coord{2, -3, 1}); got != 3 {
		t.Fatalf("chebyshev distance = %d, want 3", got)
	}
	hex2, _ := New("hex", 2)
	if got := hex2.GraphDistance(Coord{1, 1, 0}); got != 2 {
		t.Fatalf("hex 2D distance = %d, want 2", got)
	}
	if got := hex2.GraphDistance(Coord{1, -1, 0}); got != 1 {
		t.Fatalf("hex 2D distance = %d, want 1", got)
	}
}

func TestHexEuclideanEqualsGraph(t *testing.T) {
	g, _ := New("hex", 3)
	for _, d := range []Coord{{1, 0, 0}, {2, -1, 0}, {1, 1, 1}, {-3, 2, -1}} {
		if got, want := g.EuclideanDistance(d), float64(g.GraphDistance(d)); got != want {
			t.Fatalf("hex euclidean(%v) = %v, want %v", d, got, want)
		}
	}
}

func TestEuclideanDistance(t *testing.T) {
	g, _ := New("moore", 3)
	if got := g.EuclideanDistance(Coord{3, 4, 0}); math.Abs(got-5) > 1e-12 {
		t.Fatalf("euclidean = %v, want 5", got)
	}
}

func TestSphere(t *testing.T) {
	for _, name := range []string{"neumann", "moore", "hex"} {
		for _, dims := range []int{2, 3} {
			g, err := New(name, dims)
			if err != nil {
				t.Fatal(err)
			}
			const n = 40
			ball := g.Sphere(n)
			if len(ball) != n {
				t.Fatalf("%s %dD: sphere returned %d coords, want %d", name, dims, len(ball), n)
			}
			seen := map[Coord]bool{}
			prev := -1.0
			for _, c := range ball {
				if seen[c] {
					t.Fatalf("%s %dD: duplicate coord %v", name, dims, c)
				}
				seen[c] = true
				if dims == 2 && c.Z() != 0 {
					t.Fatalf("%s 2D: sphere coord %v leaves the plane", name, c)
				}
				d := g.EuclideanDistance(c)
				if d < prev {
					t.Fatalf("%s %dD: sphere distances decrease at %v", name, dims, c)
				}
				prev = d
			}
			if ball[0] != (Coord{}) {
				t.Fatalf("%s %dD: sphere does not start at origin", name, dims)
			}
		}
	}
}

func TestRandomNeighborIsAdjacent(t *testing.T) {
	rng := core.NewRNG(7)
	g, _ := New("moore", 3)
	p := Coord{4, -2, 9}
	for i := 0; i < 50; i++ {
		n := g.RandomNeighbor(p, rng)
		if d := g.GraphDistance(n.Sub(p)); d != 1 {
			t.Fatalf("random neighbor %v at graph distance %d", n, d)
		}
	}
}

func TestOutward(t *testing.T) {
	g, _ := New("moore", 2)
	p := Coord{3, 0, 0}
	out := g.Outward(p)
	if g.EuclideanDistance(out) <= g.EuclideanDistance(p) {
		t.Fatalf("outward neighbor %v is not farther than %v", out, p)
	}
}
