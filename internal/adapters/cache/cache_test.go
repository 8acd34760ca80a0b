package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryCache(t *testing.T) {
	Convey("Given an in-memory cache with a controllable clock", t, func() {
		ctx := context.Background()
		clock := &fakeClock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
		c := NewMemory(WithClock(clock.now))

		Convey("When a key was never set", func() {
			v, ok, err := c.Get(ctx, "missing")

			Convey("Then it is a miss without error", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(v, ShouldBeNil)
			})
		})

		Convey("When a value is stored with a TTL", func() {
			src := []byte("payload")
			So(c.Set(ctx, "k", src, 300*time.Second), ShouldBeNil)
			src[0] = 'X'

			Convey("Then it is returned unchanged before expiry", func() {
				clock.advance(299 * time.Second)
				v, ok, err := c.Get(ctx, "k")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(string(v), ShouldEqual, "payload")
			})

			Convey("Then it expires lazily at the deadline", func() {
				clock.advance(300 * time.Second)
				So(c.Len(), ShouldEqual, 1)
				_, ok, _ := c.Get(ctx, "k")
				So(ok, ShouldBeFalse)
				So(c.Len(), ShouldEqual, 0)
			})

			Convey("Then Delete removes it", func() {
				So(c.Delete(ctx, "k"), ShouldBeNil)
				_, ok, _ := c.Get(ctx, "k")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a value is stored without a TTL", func() {
			So(c.Set(ctx, "forever", []byte("x"), 0), ShouldBeNil)
			clock.advance(24 * time.Hour)

			Convey("Then it never expires", func() {
				_, ok, _ := c.Get(ctx, "forever")
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestMemoryCacheSweep(t *testing.T) {
	Convey("Given many distinct keys written across expiry windows", t, func() {
		ctx := context.Background()
		clock := &fakeClock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
		c := NewMemory(WithClock(clock.now))
		So(c.Set(ctx, "pinned", []byte("x"), 0), ShouldBeNil)

		for round := 0; round < 5; round++ {
			for i := 0; i < 10000; i++ {
				key := fmt.Sprintf("v%d:top_%d", round, i)
				_ = c.Set(ctx, key, []byte("payload"), 300*time.Second)
			}
			clock.advance(time.Hour)
		}

		Convey("Then expired keys are swept by later writes", func() {
			So(c.Len(), ShouldBeLessThanOrEqualTo, 20001)
		})

		Convey("Then entries without a TTL survive every sweep", func() {
			v, ok, err := c.Get(ctx, "pinned")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(string(v), ShouldEqual, "x")
		})

		Convey("Then live entries survive every sweep", func() {
			So(c.Set(ctx, "fresh", []byte("y"), 300*time.Second), ShouldBeNil)
			for i := 0; i < 1000; i++ {
				_ = c.Set(ctx, fmt.Sprintf("later_%d", i), []byte("z"), 300*time.Second)
			}
			_, ok, _ := c.Get(ctx, "fresh")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestNopCache(t *testing.T) {
	Convey("Given the no-op cache", t, func() {
		ctx := context.Background()
		var c Cache = Nop{}
		So(c.Set(ctx, "k", []byte("v"), time.Minute), ShouldBeNil)
		_, ok, err := c.Get(ctx, "k")
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)
		So(c.Delete(ctx, "k"), ShouldBeNil)
	})
}

// TestRedisCache runs against a live server when SCORESTAT_TEST_REDIS_ADDR is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("SCORESTAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCORESTAT_TEST_REDIS_ADDR not set")
	}

	Convey("Given a redis cache", t, func() {
		ctx := context.Background()
		c, err := NewRedis(ctx, RedisConfig{Addr: addr, Prefix: "scorestat-test-" + uuid.NewString() + ":"})
		So(err, ShouldBeNil)
		defer func() { _ = c.Close() }()

		Convey("Then a missing key is a miss", func() {
			_, ok, err := c.Get(ctx, "nope")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Then a stored key round-trips and can be deleted", func() {
			So(c.Set(ctx, "k", []byte{1, 2, 3}, time.Minute), ShouldBeNil)
			v, ok, err := c.Get(ctx, "k")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(v, ShouldResemble, []byte{1, 2, 3})

			So(c.Delete(ctx, "k"), ShouldBeNil)
			_, ok, _ = c.Get(ctx, "k")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestNewRedisRequiresAddr(t *testing.T) {
	Convey("Given an empty redis address", t, func() {
		_, err := NewRedis(context.Background(), RedisConfig{})
		So(err, ShouldNotBeNil)
	})
}
