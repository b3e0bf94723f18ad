package output

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/agentid"
	"disolv-sim/flow"
	"disolv-sim/geo"
)

func TestSink(t *testing.T) {
	Convey("Given a Sink over a temp directory", t, func() {
		dir := t.TempDir()
		s, err := New(dir)
		So(err, ShouldBeNil)

		Convey("AddPosition then Flush writes a header and the row", func() {
			s.AddPosition(5, agentid.ID(1), geo.MapState{X: 1.5, Y: 2.5})
			s.Flush(5)
			So(s.Close(), ShouldBeNil)

			contents, err := os.ReadFile(filepath.Join(dir, "positions.csv"))
			So(err, ShouldBeNil)
			So(string(contents), ShouldContainSubstring, "time_step,agent_id,x,y,velocity")
			So(string(contents), ShouldContainSubstring, "5,1,1.5,2.5")
		})

		Convey("AddRxCounts computes success_rate via flow.Stats", func() {
			stats := flow.Stats{}
			s.AddRxCounts(1, agentid.ID(2), stats)
			s.Flush(1)
			So(s.Close(), ShouldBeNil)

			contents, err := os.ReadFile(filepath.Join(dir, "rx_counts.csv"))
			So(err, ShouldBeNil)
			So(string(contents), ShouldContainSubstring, "1,2,0,0,0,0,0,0,0")
		})

		Convey("a second Flush with nothing new buffered does not duplicate rows", func() {
			s.AddPosition(1, agentid.ID(1), geo.MapState{X: 1, Y: 1})
			s.Flush(1)
			s.Flush(2)
			So(s.Close(), ShouldBeNil)

			contents, err := os.ReadFile(filepath.Join(dir, "positions.csv"))
			So(err, ShouldBeNil)
			lines := 0
			for _, b := range contents {
				if b == '\n' {
					lines++
				}
			}
			So(lines, ShouldEqual, 2) // header + one row
		})
	})
}
