package validator

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValidateStruct(t *testing.T) {
	Convey("TestValidateStruct", t, func() {
		type Options struct {
			URI     string        `validate:"omitempty,uri"`
			Port    int           `validate:"min=1,max=65535"`
			Timeout time.Duration `validate:"gte=0"`
			Format  string        `validate:"omitempty,oneof=text json"`
		}

		So(ValidateStruct(&Options{Port: 27017}), ShouldBeNil)
		So(ValidateStruct(Options{Port: 27017}), ShouldBeNil)
		So(ValidateStruct(&Options{Port: 0}), ShouldNotBeNil)
		So(ValidateStruct(&Options{Port: 1, Format: "xml"}), ShouldNotBeNil)

		var nilOptions *Options
		So(ValidateStruct(nilOptions), ShouldBeNil)
		So(ValidateStruct(nil), ShouldBeNil)
		So(ValidateStruct(10), ShouldBeNil)
		So(ValidateStruct(time.Now()), ShouldBeNil)
	})
}
