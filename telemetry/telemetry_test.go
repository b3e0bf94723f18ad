package telemetry

import (
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBroadcasterStatus(t *testing.T) {
	Convey("Given a fresh broadcaster with nothing published", t, func() {
		b := NewBroadcaster(":0")

		Convey("GET /status is 204 before anything is published", func() {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/status", nil)
			b.router.ServeHTTP(w, r)
			So(w.Code, ShouldEqual, 204)
		})

		Convey("GET /status returns the latest snapshot after Publish", func() {
			b.Publish(Snapshot{Tick: 5, Fields: map[string]any{"active_agents": 3}})

			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/status", nil)
			b.router.ServeHTTP(w, r)

			So(w.Code, ShouldEqual, 200)
			So(w.Body.String(), ShouldContainSubstring, `"tick":5`)
			So(w.Body.String(), ShouldContainSubstring, `"active_agents":3`)
		})
	})
}

func TestBroadcasterFanOut(t *testing.T) {
	Convey("Given a broadcaster with one registered client", t, func() {
		b := NewBroadcaster(":0")
		ch := b.register()

		Convey("Publish delivers the snapshot to the registered channel", func() {
			b.Publish(Snapshot{Tick: 1})
			So(<-ch, ShouldResemble, Snapshot{Tick: 1})
		})

		Convey("unregister closes the channel and drops it from future publishes", func() {
			b.unregister(ch)
			_, open := <-ch
			So(open, ShouldBeFalse)

			So(func() { b.Publish(Snapshot{Tick: 2}) }, ShouldNotPanic)
		})
	})
}
