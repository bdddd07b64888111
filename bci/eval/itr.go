package eval

import (
	"errors"
	"fmt"
	"math"
)

// ErrUndefined reports inputs for which the information-transfer-rate
// formula has no value, such as zero accuracy or fewer than two targets.
var ErrUndefined = errors.New("eval: information transfer rate undefined")

// ITR computes the information transfer rate in bits per minute for a given
// classification accuracy over the stated number of targets, where
// selectionTime is the duration of one selection in seconds (decision window
// plus gaze-shift time).
//
// At accuracy exactly 1 the rate is log2(targets)·60/selectionTime; this
// branch is taken exactly, not via the general formula. Accuracy 0 makes the
// formula diverge, so it is rejected with ErrUndefined instead of being
// evaluated.
func ITR(accuracy float64, targets int, selectionTime float64) (float64, error) {
	if targets < 2 {
		return 0, fmt.Errorf("%w: need at least 2 targets, got %d", ErrUndefined, targets)
	}
	if selectionTime <= 0 {
		return 0, fmt.Errorf("%w: selection time %g must be positive", ErrUndefined, selectionTime)
	}
	if accuracy < 0 || accuracy > 1 {
		return 0, fmt.Errorf("%w: accuracy %g outside [0, 1]", ErrUndefined, accuracy)
	}
	if accuracy == 0 {
		return 0, fmt.Errorf("%w: accuracy 0", ErrUndefined)
	}

	perMinute := 60 / selectionTime
	t := float64(targets)
	if accuracy == 1 {
		return math.Log2(t) * perMinute, nil
	}
	bits := math.Log2(t) +
		accuracy*math.Log2(accuracy) +
		(1-accuracy)*math.Log2((1-accuracy)/(t-1))
	return bits * perMinute, nil
}
