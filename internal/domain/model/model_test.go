package model

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestScoreEventRecord(t *testing.T) {
	Convey("Given a score event", t, func() {
		e := ScoreEvent{
			Username:   "alice",
			Score:      12,
			Topic:      "simon/score",
			QoS:        1,
			Retained:   true,
			MessageID:  7,
			ReceivedAt: time.Now(),
		}

		Convey("When converted to a record", func() {
			r := e.Record()

			Convey("Then the broker metadata is carried over and storage fields are empty", func() {
				So(r.Topic, ShouldEqual, "simon/score")
				So(r.Payload, ShouldResemble, ScorePayload{Username: "alice", Score: 12})
				So(r.QoS, ShouldEqual, 1)
				So(r.Retain, ShouldBeTrue)
				So(r.MessageID, ShouldEqual, 7)
				So(r.ID, ShouldBeEmpty)
				So(r.Date.IsZero(), ShouldBeTrue)
			})
		})
	})
}

func TestScoreRecordJSON(t *testing.T) {
	Convey("Given a persisted record", t, func() {
		r := ScoreRecord{
			ID:      "abc",
			Topic:   "simon/score",
			Payload: ScorePayload{Username: "bob", Score: 3},
			Date:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		}

		Convey("When encoded as JSON", func() {
			b, err := json.Marshal(r)
			So(err, ShouldBeNil)

			Convey("Then it uses the stored field names", func() {
				s := string(b)
				So(s, ShouldContainSubstring, `"_id":"abc"`)
				So(s, ShouldContainSubstring, `"payload":{"username":"bob","score":3}`)
				So(s, ShouldContainSubstring, `"messageId":0`)
				So(s, ShouldContainSubstring, `"date":"2024-05-01T10:00:00Z"`)
			})
		})
	})
}

func TestStartCommand(t *testing.T) {
	Convey("Given a start command", t, func() {
		b, err := json.Marshal(NewStartCommand("alice"))

		Convey("Then it encodes the start action and username", func() {
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"action":"start","username":"alice"}`)
		})
	})
}

func TestConnectionState(t *testing.T) {
	Convey("Given connection states", t, func() {
		So(StateConnected.Connected(), ShouldBeTrue)
		So(StateDisconnected.Connected(), ShouldBeFalse)
		So(StateDisconnected.String(), ShouldEqual, "disconnected")
	})
}
