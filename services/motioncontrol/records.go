package motioncontrol

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
)

// Trajectory edition status codes returned to the command dispatcher.
const (
	TrajectoryEditionSuccess uint8 = iota
	TrajectoryEditionFailure
)

// EditionResult maps the error of a trajectory edit to its status code.
func EditionResult(err error) uint8 {
	if err == nil {
		return TrajectoryEditionSuccess
	}
	return TrajectoryEditionFailure
}

// DecodeTrajectoryPoints splits b into encoded TrajectoryPoints.
func DecodeTrajectoryPoints(b []byte) ([]TrajectoryPoint, error) {
	if len(b)%TrajectoryPointSize != 0 {
		return nil, errors.Errorf("%d bytes is not a whole number of %d byte points", len(b), TrajectoryPointSize)
	}
	var decodeErr error
	points := lo.Map(lo.Chunk(b, TrajectoryPointSize), func(record []byte, _ int) TrajectoryPoint {
		var tp TrajectoryPoint
		if err := tp.UnmarshalBinary(record); err != nil && decodeErr == nil {
			decodeErr = err
		}
		return tp
	})
	return points, decodeErr
}

// AppendRecords appends every point encoded in b. A refused append stops the robot, clears
// the trajectory and drops the rest of the batch.
func (m *MotionControlSystem) AppendRecords(ctx context.Context, b []byte) error {
	_, span := trace.StartSpan(ctx, "motioncontrol::AppendRecords")
	defer span.End()

	points, err := DecodeTrajectoryPoints(b)
	if err != nil {
		return errors.Wrapf(ErrTrajectoryEdition, "decoding records: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tp := range points {
		if err := m.appendToTrajectory(tp); err != nil {
			m.logger.Warnw("append refused, clearing trajectory", "record", i, "error", err)
			m.stopAndClear()
			return err
		}
	}
	return nil
}

// EditRecords overwrites consecutive points. b holds the index of the first point followed by
// the encoded points. A refused edit stops the robot, clears the trajectory and drops the rest
// of the batch.
func (m *MotionControlSystem) EditRecords(ctx context.Context, b []byte) error {
	_, span := trace.StartSpan(ctx, "motioncontrol::EditRecords")
	defer span.End()

	if len(b) == 0 {
		return errors.Wrap(ErrTrajectoryEdition, "missing point index")
	}
	points, err := DecodeTrajectoryPoints(b[1:])
	if err != nil {
		return errors.Wrapf(ErrTrajectoryEdition, "decoding records: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	first := int(b[0])
	for i, tp := range points {
		if err := m.updateTrajectoryPoint(first+i, tp); err != nil {
			m.logger.Warnw("edit refused, clearing trajectory", "index", first+i, "error", err)
			m.stopAndClear()
			return err
		}
	}
	return nil
}
