package state

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/simon-relay/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func score(user string, v float64) model.ScoreEvent {
	return model.ScoreEvent{Username: user, Score: v, Topic: "simon/score", ReceivedAt: time.Now()}
}

func TestContainer(t *testing.T) {
	Convey("Given a new container", t, func() {
		c := New(3)

		Convey("Then it starts disconnected and empty", func() {
			s := c.Snapshot()
			So(s.Connection, ShouldEqual, model.StateDisconnected)
			So(s.Connected, ShouldBeFalse)
			So(s.LatestScore, ShouldBeNil)
			So(s.LegacyScore, ShouldBeNil)
			So(s.RecentScores, ShouldBeEmpty)
			_, ok := c.Latest()
			So(ok, ShouldBeFalse)
		})

		Convey("When scores are recorded", func() {
			for i := 1; i <= 5; i++ {
				c.RecordScore(score(fmt.Sprintf("p%d", i), float64(i)))
			}

			Convey("Then the latest is the last one received", func() {
				l, ok := c.Latest()
				So(ok, ShouldBeTrue)
				So(l.Score, ShouldEqual, 5)
				So(c.Snapshot().ScoresReceived, ShouldEqual, 5)
			})

			Convey("Then the recent window is bounded and newest first", func() {
				r := c.Snapshot().RecentScores
				So(len(r), ShouldEqual, 3)
				So(r[0].Username, ShouldEqual, "p5")
				So(r[1].Username, ShouldEqual, "p4")
				So(r[2].Username, ShouldEqual, "p3")
			})

			Convey("Then snapshots do not alias internal state", func() {
				s := c.Snapshot()
				s.RecentScores[0].Username = "mutated"
				s.LatestScore.Score = -1
				again := c.Snapshot()
				So(again.RecentScores[0].Username, ShouldEqual, "p5")
				So(again.LatestScore.Score, ShouldEqual, 5)
			})
		})

		Convey("When a legacy reading is recorded", func() {
			c.RecordLegacy(model.LegacyReading{Value: 12, Raw: "12", Topic: "test/topic"})

			Convey("Then only the legacy reading changes", func() {
				s := c.Snapshot()
				So(s.LegacyScore.Value, ShouldEqual, 12)
				So(s.LatestScore, ShouldBeNil)
				So(s.RecentScores, ShouldBeEmpty)
			})
		})

		Convey("When the connection transitions", func() {
			at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			c.SetConnection(model.StateDisconnected, at, errors.New("connection reset"))

			Convey("Then the cause is kept while disconnected", func() {
				s := c.Snapshot()
				So(s.LastError, ShouldEqual, "connection reset")
				So(s.LastTransitionAt, ShouldEqual, at)
			})

			Convey("Then connecting clears the cause", func() {
				c.SetConnection(model.StateConnected, at.Add(time.Second), nil)
				So(c.Connected(), ShouldBeTrue)
				So(c.Snapshot().LastError, ShouldBeEmpty)
			})
		})
	})
}

func TestContainerDefaultLimit(t *testing.T) {
	Convey("Given a non-positive limit", t, func() {
		c := New(0)
		for i := 0; i < defaultRecentLimit+5; i++ {
			c.RecordScore(score("p", float64(i)))
		}
		So(len(c.Snapshot().RecentScores), ShouldEqual, defaultRecentLimit)
	})
}

func TestContainerConcurrentAccess(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		c := New(5)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					c.RecordScore(score("p", float64(i*100+j)))
				}
			}(i)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_ = c.Snapshot()
					_ = c.Connected()
				}
			}()
		}
		wg.Wait()

		Convey("Then every write is counted", func() {
			So(c.Snapshot().ScoresReceived, ShouldEqual, 800)
			So(len(c.Snapshot().RecentScores), ShouldEqual, 5)
		})
	})
}
