// Package main runs the motion-control stack against a simulated robot.
package main

import (
	"context"
	"log"
	"math"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/motioncore/components/drive"
	drivefake "go.viam.com/motioncore/components/drive/fake"
	"go.viam.com/motioncore/components/steering"
	steerfake "go.viam.com/motioncore/components/steering/fake"
	"go.viam.com/motioncore/config"
	"go.viam.com/motioncore/logging"
	"go.viam.com/motioncore/services/motioncontrol"
	"go.viam.com/motioncore/spatialmath"
)

const (
	flagConfig    = "config"
	flagDebug     = "debug"
	flagLogFormat = "log-format"
	flagLength    = "length"
	flagCurvature = "curvature"
	flagSpeed     = "speed"
	flagRealtime  = "realtime"
	flagTimeout   = "timeout"
	flagPlot      = "plot"

	pointSpacing = 20. // mm
)

func main() {
	app := &cli.App{
		Name:  "motionsim",
		Usage: "drive a simulated robot along a generated trajectory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load the robot configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFormat,
				Value: string(logging.ConsoleFormat),
				Usage: "log encoding, console or json",
			},
			&cli.Float64Flag{
				Name:  flagLength,
				Value: 1000,
				Usage: "trajectory length in mm",
			},
			&cli.Float64Flag{
				Name:  flagCurvature,
				Value: 0,
				Usage: "trajectory curvature in 1/m, positive to the left",
			},
			&cli.Float64Flag{
				Name:  flagSpeed,
				Value: 500,
				Usage: "maximum speed in mm/s, negative to drive in reverse",
			},
			&cli.BoolFlag{
				Name:  flagRealtime,
				Usage: "run the control loops on background workers against the wall clock",
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Value: time.Minute,
				Usage: "give up after this much simulated time",
			},
			&cli.StringFlag{
				Name:  flagPlot,
				Usage: "write the driven path and the waypoints to PNG `FILE`",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// sim is the motion-control stack wired to a simulated robot.
type sim struct {
	cfg    *config.Config
	clk    clock.Clock
	plant  *drivefake.Plant
	dc     *steering.DirectionController
	drive  *drive.Drivetrain
	mcs    *motioncontrol.MotionControlSystem
	logger logging.Logger
	path   plotter.XYs
}

func newSim(ctx context.Context, cfg *config.Config, clk clock.Clock, logger logging.Logger) (*sim, error) {
	servo := steerfake.NewServo(clk, cfg.Steering.AngleOriginDeg, 0)
	dc, err := steering.NewDirectionController(ctx, servo, cfg.Steering.Geometry, cfg.SteeringRecoverDelay(), clk,
		logger.Sublogger("steering"))
	if err != nil {
		return nil, err
	}

	plantCfg := drivefake.DefaultPlantConfig()
	plantCfg.TickToMM = cfg.Odometry.TickToMM
	plantCfg.TickToRad = cfg.Odometry.TickToRad
	plantCfg.MotorTickToMM = cfg.Drive.TickToMM
	plant := drivefake.NewPlant(plantCfg, clk, dc.RealCurvature)

	me := drive.NewMotorEncoder(plant.Motor(), plant.MotorEncoder(), cfg.Drive, cfg.TickFrequencyHz, clk,
		logger.Sublogger("drive"))
	drivetrain := drive.NewDrivetrain(me, plant.LeftEncoder(), plant.RightEncoder())

	mcs := motioncontrol.NewMotionControlSystem(cfg.TickFrequencyHz, cfg.Odometry, dc, drivetrain, clk,
		logger.Sublogger("motioncontrol"))
	mcs.EnableHighSpeed(cfg.HighSpeed)
	if !cfg.HighSpeed {
		mcs.SetTunings(cfg.Tunings)
	}
	mcs.EnableParkingBrake(cfg.ParkingBrake)

	return &sim{cfg: cfg, clk: clk, plant: plant, dc: dc, drive: drivetrain, mcs: mcs, logger: logger}, nil
}

func (s *sim) sample() {
	pose := s.plant.Pose()
	s.path = append(s.path, plotter.XY{X: pose.X, Y: pose.Y})
}

// step runs the control loops in lockstep with a simulated clock.
func (s *sim) step(ctx context.Context, timeout time.Duration) error {
	mock, ok := s.clk.(*clock.Mock)
	if !ok {
		return errors.New("stepped simulation needs a mock clock")
	}
	period := s.cfg.TickPeriod()
	steerEvery := max(1, int(s.cfg.SteeringControlPeriod()/period))
	telemetryEvery := max(1, int(s.cfg.TelemetryPeriod()/period))

	for tick := 0; s.mcs.IsMovingToDestination() || s.mcs.MovePhase() != motioncontrol.MoveEnded; tick++ {
		if time.Duration(tick)*period > timeout {
			return errors.Errorf("trajectory not finished after %v", timeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mock.Add(period)
		if tick%steerEvery == 0 {
			if err := s.dc.Control(ctx); err != nil {
				s.logger.Debugw("steering control failed", "error", err)
			}
		}
		s.mcs.Control()
		s.sample()
		if tick%telemetryEvery == 0 {
			s.mcs.LogStatus()
		}
	}
	return nil
}

// runRealtime runs the control loops on a Runner and samples the pose until the trajectory
// is over.
func (s *sim) runRealtime(ctx context.Context, timeout time.Duration) error {
	runner := motioncontrol.NewRunner(s.mcs, motioncontrol.RunnerOptions{
		TickPeriod:      s.cfg.TickPeriod(),
		TelemetryPeriod: s.cfg.TelemetryPeriod(),
		Steering:        s.dc,
		SteeringPeriod:  s.cfg.SteeringControlPeriod(),
		Stoppers:        []drive.Stopper{s.drive},
	}, s.clk, s.logger.Sublogger("runner"))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for s.mcs.IsMovingToDestination() && goutils.SelectContextOrWait(ctx, 10*time.Millisecond) {
		s.sample()
	}
	_, waitErr := s.mcs.WaitForMoveEnd(ctx)
	s.logger.Infow("control ticks", "count", runner.Ticks())
	return errors.Wrap(multierr.Combine(waitErr, runner.Close(context.Background())), "realtime run")
}

// arcTrajectory returns points every pointSpacing mm along an arc of constant curvature
// starting at start. The last point is a stop and end point.
func arcTrajectory(start spatialmath.Pose, length, curvature, speed float64) []motioncontrol.TrajectoryPoint {
	n := max(1, int(math.Round(length/pointSpacing)))
	dir := 1.
	if speed < 0 {
		dir = -1
	}
	points := make([]motioncontrol.TrajectoryPoint, 0, n+1)
	for i := 0; i <= n; i++ {
		s := dir * float64(i) * pointSpacing
		dHeading := s * curvature / 1000
		var dx, dy float64
		if curvature == 0 {
			dx = s
		} else {
			r := 1000 / curvature
			dx = r * math.Sin(dHeading)
			dy = r * (1 - math.Cos(dHeading))
		}
		cos, sin := math.Cos(start.Heading), math.Sin(start.Heading)
		points = append(points, motioncontrol.TrajectoryPoint{
			Target:            spatialmath.NewPose(start.X+dx*cos-dy*sin, start.Y+dx*sin+dy*cos, start.Heading+dHeading),
			Curvature:         curvature,
			SignedMaxSpeed:    speed,
			IsStopPoint:       i == n,
			IsEndOfTrajectory: i == n,
		})
	}
	return points
}

func encodePoints(points []motioncontrol.TrajectoryPoint) ([]byte, error) {
	b := make([]byte, 0, len(points)*motioncontrol.TrajectoryPointSize)
	for _, tp := range points {
		record, err := tp.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = append(b, record...)
	}
	return b, nil
}

func savePlot(filename string, driven plotter.XYs, points []motioncontrol.TrajectoryPoint) error {
	p := plot.New()
	p.Title.Text = "Driven path"
	p.X.Label.Text = "x (mm)"
	p.Y.Label.Text = "y (mm)"
	p.Add(plotter.NewGrid())

	waypoints := make(plotter.XYs, len(points))
	for i, tp := range points {
		waypoints[i] = plotter.XY{X: tp.Target.X, Y: tp.Target.Y}
	}
	scatter, err := plotter.NewScatter(waypoints)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(scatter)
	p.Legend.Add("waypoints", scatter)

	if len(driven) > 0 {
		line, err := plotter.NewLine(driven)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("robot", line)
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}

func run(c *cli.Context) error {
	format, err := logging.FormatFromString(c.String(flagLogFormat))
	if err != nil {
		return err
	}
	level := logging.INFO
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}
	logger := logging.NewLoggerWithFormat("motionsim", level, format)

	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}

	var clk clock.Clock = clock.NewMock()
	if c.Bool(flagRealtime) {
		clk = clock.New()
	}
	s, err := newSim(c.Context, cfg, clk, logger)
	if err != nil {
		return err
	}

	points := arcTrajectory(spatialmath.NewZeroPose(), c.Float64(flagLength), c.Float64(flagCurvature), c.Float64(flagSpeed))
	records, err := encodePoints(points)
	if err != nil {
		return err
	}
	if err := s.mcs.AppendRecords(c.Context, records); err != nil {
		return err
	}
	if err := s.mcs.FollowTrajectory(); err != nil {
		return err
	}

	if c.Bool(flagRealtime) {
		err = s.runRealtime(c.Context, c.Duration(flagTimeout))
	} else {
		err = s.step(c.Context, c.Duration(flagTimeout))
	}
	if err != nil {
		return err
	}

	end := points[len(points)-1].Target
	status := s.mcs.MoveStatus()
	logger.Infow("trajectory done",
		"status", status,
		"pose", s.plant.Pose(),
		"odometry", s.mcs.Pose(),
		"target", end,
		"error_mm", s.plant.Pose().DistanceTo(end),
		"run", s.mcs.RunID(),
	)

	if path := c.String(flagPlot); path != "" {
		if err := savePlot(path, s.path, points); err != nil {
			return errors.Wrap(err, "couldn't save plot")
		}
	}
	if status != motioncontrol.MoveOK {
		return errors.Errorf("move failed: %v", status)
	}
	return nil
}
