package selector

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/linker"
)

func candidates() []linker.Link {
	return []linker.Link{
		{Target: 1, Distance: 50},
		{Target: 2, Distance: 10},
		{Target: 3, Distance: 90},
	}
}

func TestSelectAll(t *testing.T) {
	Convey("Given the All variant", t, func() {
		s := New(All, 0, nil)
		So(s.Select(candidates(), nil), ShouldHaveLength, 3)
	})
}

func TestSelectNearest(t *testing.T) {
	Convey("Given the Nearest variant", t, func() {
		s := New(Nearest, 0, nil)
		selected := s.Select(candidates(), nil)
		So(selected, ShouldHaveLength, 1)
		So(selected[0].Target.String(), ShouldEqual, "2")
	})
}

func TestSelectEmptyCandidates(t *testing.T) {
	Convey("Given no candidates", t, func() {
		s := New(Nearest, 0, nil)
		So(s.Select(nil, nil), ShouldBeNil)
	})
}

func TestSelectStatsWeighted(t *testing.T) {
	Convey("Given the Stats variant with a threshold and matching per-candidate stats", t, func() {
		s := New(Stats, 0.5, nil)
		stats := []Stats{
			{SuccessRate: 0.9}, // target 1: qualifies
			{SuccessRate: 0.1}, // target 2: below threshold despite being nearest
			{SuccessRate: 0.6}, // target 3: qualifies, lower rate than target 1
		}

		Convey("only candidates whose success rate exceeds the threshold are selected, ranked by rate", func() {
			selected := s.Select(candidates(), stats)
			So(selected, ShouldHaveLength, 2)
			So(selected[0].Target.String(), ShouldEqual, "1")
			So(selected[1].Target.String(), ShouldEqual, "3")
		})
	})

	Convey("Given the Stats variant where no candidate clears the threshold", t, func() {
		s := New(Stats, 0.99, nil)
		stats := []Stats{{SuccessRate: 0.1}, {SuccessRate: 0.2}, {SuccessRate: 0.3}}

		Convey("Select falls back to the single nearest candidate", func() {
			selected := s.Select(candidates(), stats)
			So(selected, ShouldHaveLength, 1)
			So(selected[0].Target.String(), ShouldEqual, "2")
		})
	})

	Convey("Given the Stats variant with a nil stats slice", t, func() {
		s := New(Stats, 0, nil)

		Convey("every candidate defaults to a zero success rate, so a non-negative threshold always falls back to nearest", func() {
			selected := s.Select(candidates(), nil)
			So(selected, ShouldHaveLength, 1)
			So(selected[0].Target.String(), ShouldEqual, "2")
		})
	})
}
