package lake

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"disolv-sim/payload"
)

func TestLakeNormalAndSidelinkChannels(t *testing.T) {
	Convey("Given an empty lake", t, func() {
		l := New()

		Convey("a payload deposited normally is returned once by PayloadsFor", func() {
			p := payload.New(payload.RecipientInfo{ID: 1})
			l.AddPayloadTo(5, p)

			got := l.PayloadsFor(5)
			So(got, ShouldHaveLength, 1)
			So(l.PayloadsFor(5), ShouldBeEmpty)
		})

		Convey("normal and sidelink channels don't leak into each other", func() {
			l.AddPayloadTo(5, payload.New(payload.RecipientInfo{ID: 1}))
			l.AddSidelinkPayloadTo(5, payload.New(payload.RecipientInfo{ID: 2}))

			So(l.PayloadsFor(5), ShouldHaveLength, 1)
			So(l.SidelinkPayloadsFor(5), ShouldHaveLength, 1)
		})

		Convey("IsEmptyFor reflects the normal channel only", func() {
			So(l.IsEmptyFor(5), ShouldBeTrue)
			l.AddSidelinkPayloadTo(5, payload.New(payload.RecipientInfo{ID: 2}))
			So(l.IsEmptyFor(5), ShouldBeTrue)
			l.AddPayloadTo(5, payload.New(payload.RecipientInfo{ID: 1}))
			So(l.IsEmptyFor(5), ShouldBeFalse)
		})
	})
}

func TestLakeCleanPayloadsDrainsUnliftedEntries(t *testing.T) {
	Convey("Given a lake with payloads nobody lifted this tick", t, func() {
		l := New()
		l.AddPayloadTo(1, payload.New(payload.RecipientInfo{ID: 9}))
		l.AddSidelinkPayloadTo(2, payload.New(payload.RecipientInfo{ID: 9}))

		Convey("CleanPayloads drops everything regardless of channel", func() {
			l.CleanPayloads()
			So(l.IsEmptyFor(1), ShouldBeTrue)
			So(l.SidelinkPayloadsFor(2), ShouldBeEmpty)
		})
	})
}
