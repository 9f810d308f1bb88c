package predicate

import (
	"math"
	"testing"

	"github.com/kailas-cloud/ftcatalog/internal/domain/numeric"
)

func TestConstructors(t *testing.T) {
	n := And(Like("title", "Flag*ff"), Not(EqualTo("id", "x")))
	if n.Kind != KindAnd || len(n.Children) != 2 {
		t.Fatalf("unexpected and node: %+v", n)
	}
	like := n.Children[0]
	if like.Wildcard != '*' || like.Single != '?' || like.Escape != '\\' || like.MatchCase {
		t.Errorf("unexpected like defaults: %+v", like)
	}
	not := n.Children[1]
	if not.Kind != KindNot || not.Children[0].Op != numeric.OpEQ {
		t.Errorf("unexpected not node: %+v", not)
	}
	if c := LikeCase("title", "F*"); !c.MatchCase {
		t.Error("expected case-sensitive like")
	}
}

func TestDistanceUnits(t *testing.T) {
	n := DWithinDistance("location", "POINT(0 0)", 2, Kilometers)
	if n.DistanceMeters != 2000 {
		t.Errorf("distance = %v, want 2000", n.DistanceMeters)
	}
	if got := Miles.ToMeters(1); math.Abs(got-1609.344) > 1e-9 {
		t.Errorf("mile = %v", got)
	}
	if ParseUnit("nmi") != NauticalMiles || ParseUnit("bogus") != Meters {
		t.Error("unexpected unit parsing")
	}
}

func TestWalk_Prunes(t *testing.T) {
	tree := Or(Not(Like("a", "x")), Fuzzy("b", "y"))
	var kinds []Kind
	Walk(tree, func(n *Node) bool {
		kinds = append(kinds, n.Kind)
		return n.Kind != KindNot
	})
	want := []Kind{KindOr, KindNot, KindFuzzy}
	if len(kinds) != len(want) {
		t.Fatalf("visited %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("visit[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestKindString(t *testing.T) {
	if KindStructural.String() != "structural" || Kind(99).String() != "kind(99)" {
		t.Error("unexpected kind names")
	}
	if Nearest.String() != "nearest" || Relative.String() != "relative" {
		t.Error("unexpected op names")
	}
}
