package tick

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTickArithmetic(t *testing.T) {
	Convey("Given tick arithmetic near the bounds", t, func() {
		Convey("Add saturates instead of wrapping", func() {
			So(Max.Add(1), ShouldEqual, Max)
			So(Tick(5).Add(3), ShouldEqual, Tick(8))
		})

		Convey("Sub saturates at zero", func() {
			So(Tick(2).Sub(5), ShouldEqual, Tick(0))
			So(Tick(5).Sub(2), ShouldEqual, Tick(3))
		})

		Convey("Range walks [start, end) in a fixed step", func() {
			ticks := Range(0, 10, 3)
			So(ticks, ShouldResemble, []Tick{0, 3, 6, 9})
		})
	})
}
