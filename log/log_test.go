package log

import (
	"testing"

	"github.com/hatlonely/nosqlx/log/logger"
	"github.com/hatlonely/nosqlx/ref"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewLoggerWithOptions(t *testing.T) {
	Convey("TestNewLoggerWithOptions", t, func() {
		Convey("empty options returns default", func() {
			l, err := NewLoggerWithOptions(nil)
			So(err, ShouldBeNil)
			So(l, ShouldEqual, Default())

			l, err = NewLoggerWithOptions(&ref.TypeOptions{})
			So(err, ShouldBeNil)
			So(l, ShouldEqual, Default())
		})

		Convey("slog with options", func() {
			l, err := NewLoggerWithOptions(&ref.TypeOptions{
				Type:    "SLog",
				Options: &logger.SLogOptions{Level: "debug", Format: "json"},
			})
			So(err, ShouldBeNil)
			So(l, ShouldHaveSameTypeAs, &logger.SLog{})
		})

		Convey("unknown type", func() {
			_, err := NewLoggerWithOptions(&ref.TypeOptions{Type: "Unknown"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSetDefault(t *testing.T) {
	Convey("TestSetDefault", t, func() {
		old := Default()
		defer SetDefault(old)

		nop := logger.NewNop()
		SetDefault(nop)
		So(Default(), ShouldEqual, nop)

		SetDefault(nil)
		So(Default(), ShouldEqual, nop)
	})
}
