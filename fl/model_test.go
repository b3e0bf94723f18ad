package fl

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFedAvg(t *testing.T) {
	Convey("Given a global model and two client models", t, func() {
		global := Model{{0, 0}}
		clientA := Model{{2, 4}}
		clientB := Model{{4, 8}}

		Convey("FedAvg computes the coordinate-wise mean", func() {
			avg := FedAvg(context.Background(), global, []Model{clientA, clientB})
			So(avg, ShouldResemble, Model{{3, 6}})
		})

		Convey("aggregating zero clients leaves the global model unchanged", func() {
			avg := FedAvg(context.Background(), global, nil)
			So(avg, ShouldResemble, global)
		})

		Convey("a mismatched-shape client is skipped rather than averaged in", func() {
			oddShaped := Model{{1, 2, 3}}
			avg := FedAvg(context.Background(), global, []Model{clientA, oddShaped})
			So(avg, ShouldResemble, Model{{2, 4}})
		})
	})
}
