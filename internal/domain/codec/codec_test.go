package codec

import (
	"errors"
	"testing"

	"github.com/okian/simon-relay/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeScore(t *testing.T) {
	Convey("Given structured score payloads", t, func() {
		Convey("When the payload is a valid object", func() {
			s, err := DecodeScore([]byte(` {"username":"alice","score":42.5} `))

			Convey("Then username and score are extracted", func() {
				So(err, ShouldBeNil)
				So(s, ShouldResemble, StructuredScore{Username: "alice", Score: 42.5})
				So(s.Kind(), ShouldEqual, KindStructuredScore)
			})
		})

		Convey("When extra fields are present", func() {
			s, err := DecodeScore([]byte(`{"username":"bob","score":1,"level":3}`))

			Convey("Then they are ignored", func() {
				So(err, ShouldBeNil)
				So(s.Username, ShouldEqual, "bob")
			})
		})

		Convey("When the payload is malformed", func() {
			bad := []string{
				``,
				`not json`,
				`42`,
				`"alice"`,
				`[{"username":"a","score":1}]`,
				`null`,
				`{}`,
				`{"username":"alice"}`,
				`{"score":3}`,
				`{"username":7,"score":3}`,
				`{"username":"alice","score":"3"}`,
				`{"username":null,"score":3}`,
				`{"username":"alice","score":true}`,
				`{"username":"alice","score":3`,
			}

			Convey("Then every one fails with ErrMalformedPayload", func() {
				for _, p := range bad {
					_, err := DecodeScore([]byte(p))
					So(errors.Is(err, ErrMalformedPayload), ShouldBeTrue)
				}
			})
		})

		Convey("When the keys differ only in case", func() {
			bad := []string{
				`{"USERNAME":"mallory","SCORE":99}`,
				`{"Username":"bob","Score":3}`,
				`{"username":"bob","Score":3}`,
			}

			Convey("Then they count as missing", func() {
				for _, p := range bad {
					_, err := DecodeScore([]byte(p))
					So(errors.Is(err, ErrMalformedPayload), ShouldBeTrue)
				}
			})
		})
	})
}

func TestDecodeLegacy(t *testing.T) {
	Convey("Given legacy payloads", t, func() {
		Convey("When the payload is numeric", func() {
			for raw, want := range map[string]float64{"12": 12, " 7.5 ": 7.5, "-3": -3, "1e3": 1000} {
				v, err := DecodeLegacy([]byte(raw))
				So(err, ShouldBeNil)
				So(v.Value, ShouldEqual, want)
				So(v.Kind(), ShouldEqual, KindLegacyNumeric)
			}
		})

		Convey("When the payload is not numeric", func() {
			for _, raw := range []string{"", "  ", "start", "Hello MQTT", "12abc", "NaN", "Inf", "-Infinity"} {
				_, err := DecodeLegacy([]byte(raw))
				So(errors.Is(err, ErrNotNumeric), ShouldBeTrue)
			}
		})
	})
}

func TestDecoderRouting(t *testing.T) {
	Convey("Given a decoder routing two topics", t, func() {
		d := NewDecoder().
			Route("simon/score", KindStructuredScore).
			Route("test/topic", KindLegacyNumeric)

		Convey("When a JSON score arrives on the score topic", func() {
			m, err := d.Decode("simon/score", []byte(`{"username":"a","score":1}`))

			Convey("Then it decodes as a structured score", func() {
				So(err, ShouldBeNil)
				_, ok := m.(StructuredScore)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When a number arrives on the score topic", func() {
			_, err := d.Decode("simon/score", []byte(`12`))

			Convey("Then it is not sniffed as legacy", func() {
				So(errors.Is(err, ErrMalformedPayload), ShouldBeTrue)
			})
		})

		Convey("When a number arrives on the legacy topic", func() {
			m, err := d.Decode("test/topic", []byte(`12`))

			Convey("Then it decodes as legacy numeric", func() {
				So(err, ShouldBeNil)
				So(m.(LegacyNumeric).Value, ShouldEqual, 12)
			})
		})

		Convey("When a message arrives on an unknown topic", func() {
			_, err := d.Decode("other", []byte(`12`))

			Convey("Then it is unrouted", func() {
				So(errors.Is(err, ErrUnroutedTopic), ShouldBeTrue)
			})
		})

		Convey("Then KindFor reports registered formats", func() {
			k, ok := d.KindFor("test/topic")
			So(ok, ShouldBeTrue)
			So(k, ShouldEqual, KindLegacyNumeric)
			_, ok = d.KindFor("nope")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestEncode(t *testing.T) {
	Convey("Given outbound payloads", t, func() {
		b, err := EncodeStart(model.NewStartCommand("alice"))
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"action":"start","username":"alice"}`)

		b, err = EncodeScore(model.ScorePayload{Username: "bob", Score: 9})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"username":"bob","score":9}`)
	})
}
