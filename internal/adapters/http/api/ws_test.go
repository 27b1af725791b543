package api

import (
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raceledger/pkg/logger"
)

func TestCheckOrigin(t *testing.T) {
	Convey("Given a websocket handler with one extra origin", t, func() {
		h := NewWebsocketHandler(nil, logger.Nop(), []string{"https://Play.Example.com/"})
		req := func(origin string) bool {
			r := httptest.NewRequest("GET", "http://ledger.local:9080/ws", nil)
			if origin != "" {
				r.Header.Set("Origin", origin)
			}
			return h.checkOrigin(r)
		}

		Convey("Then clients without an Origin header pass", func() {
			So(req(""), ShouldBeTrue)
		})

		Convey("Then pages served by the same host pass", func() {
			So(req("http://ledger.local:9080"), ShouldBeTrue)
		})

		Convey("Then the configured origin passes regardless of case", func() {
			So(req("https://play.example.com"), ShouldBeTrue)
		})

		Convey("Then any other origin is refused", func() {
			So(req("https://evil.example.com"), ShouldBeFalse)
			So(req("http://play.example.com"), ShouldBeFalse)
			So(req("not a url"), ShouldBeFalse)
		})
	})
}
