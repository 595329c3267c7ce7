package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/stcurve/internal/app"
	"github.com/okian/stcurve/internal/domain/model"
	"github.com/okian/stcurve/pkg/logger"
	"github.com/okian/stcurve/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// zigzag returns n points alternating north and south while heading east.
func zigzag(n int) []model.Point {
	points := make([]model.Point, n)
	for i := range points {
		y := 0.0
		if i%2 == 1 {
			y = 0.001
		}
		points[i] = model.Point{ID: string(rune('a' + i%26)), X: float64(i) * 0.001, Y: y, T: int64(i * 10)}
	}
	return points
}

func straight(n int) []model.Point {
	points := make([]model.Point, n)
	for i := range points {
		points[i] = model.Point{ID: string(rune('a' + i%26)), X: float64(i), Y: float64(i), T: int64(i)}
	}
	return points
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.DefaultTolerance(), ShouldEqual, 0.02)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["storedResults"], ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
			service.WithTolerance(0.5),
			service.WithMaxPoints(10),
			service.WithRejectUnordered(true),
		)

		Convey("Then the options should be applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["dedupeSize"], ShouldEqual, 25)
			So(stats["maxPoints"], ShouldEqual, 10)
			So(stats["rejectUnordered"], ShouldEqual, true)
			So(svc.DefaultTolerance(), ShouldEqual, 0.5)
		})
	})

	Convey("Given invalid option values", t, func() {
		svc := service.New(service.WithTolerance(-1), service.WithWorkerCount(0))

		Convey("Then they should be ignored", func() {
			So(svc.DefaultTolerance(), ShouldEqual, 0.02)
			So(svc.GetStats()["workerCount"], ShouldBeGreaterThan, 0)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("And starting twice should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When stopping a started service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("And stopping again should be safe", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})

		Convey("When submitting before start", func() {
			_, _, err := svc.Submit(ctx, model.Trajectory{ID: "t", Points: straight(3)}, 0)

			Convey("Then it should fail", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Compress(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service", t, func() {
		svc := service.New(service.WithMaxPoints(100))

		Convey("When compressing a straight path", func() {
			out, err := svc.Compress(ctx, straight(10), 0)

			Convey("Then only the endpoints should remain", func() {
				So(err, ShouldBeNil)
				So(out.Original, ShouldEqual, 10)
				So(out.Compressed, ShouldEqual, 2)
				So(out.Rate, ShouldEqual, 5)
				So(out.Points[0].ID, ShouldEqual, "a")
				So(out.Points[1].ID, ShouldEqual, "j")
			})
		})

		Convey("When compressing a zigzag with zero tolerance", func() {
			in := zigzag(8)
			out, err := svc.Compress(ctx, in, 0)

			Convey("Then every point should be kept", func() {
				So(err, ShouldBeNil)
				So(out.Points, ShouldResemble, in)
				So(out.Rate, ShouldEqual, 1)
			})
		})

		Convey("When compressing fewer than three points", func() {
			out, err := svc.Compress(ctx, straight(2), 0)

			Convey("Then the input should be echoed", func() {
				So(err, ShouldBeNil)
				So(out.Compressed, ShouldEqual, 2)
			})
		})

		Convey("When compressing nothing", func() {
			out, err := svc.Compress(ctx, nil, 0)

			Convey("Then the output should be empty but not nil", func() {
				So(err, ShouldBeNil)
				So(out.Points, ShouldNotBeNil)
				So(out.Points, ShouldBeEmpty)
				So(out.Rate, ShouldEqual, 0)
			})
		})

		Convey("When the tolerance is negative", func() {
			_, err := svc.Compress(ctx, straight(5), -0.1)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, service.ErrInvalidTolerance), ShouldBeTrue)
			})
		})

		Convey("When the trajectory is too long", func() {
			_, err := svc.Compress(ctx, straight(101), 0)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, service.ErrTooManyPoints), ShouldBeTrue)
			})
		})
	})

	Convey("Given unordered timestamps", t, func() {
		in := straight(4)
		in[2].T = -5

		Convey("Then they should pass by default", func() {
			_, err := service.New().Compress(ctx, in, 0)
			So(err, ShouldBeNil)
		})

		Convey("And be rejected when configured", func() {
			_, err := service.New(service.WithRejectUnordered(true)).Compress(ctx, in, 0)
			So(errors.Is(err, service.ErrUnorderedTimestamps), ShouldBeTrue)
		})
	})
}

// latencySum returns the running sum of the compression latency histogram.
func latencySum() float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() == "stcurve_compressor_compression_latency_milliseconds" && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetHistogram().GetSampleSum()
		}
	}
	return 0
}

func TestService_CompressLatency(t *testing.T) {
	Convey("Given a synchronous compression of a short trajectory", t, func() {
		svc := service.New()
		before := latencySum()
		_, err := svc.Compress(context.Background(), zigzag(2000), 0)
		So(err, ShouldBeNil)

		Convey("Then its sub-millisecond latency should still be recorded", func() {
			So(latencySum(), ShouldBeGreaterThan, before)
		})
	})
}
