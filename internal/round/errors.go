package round

import "errors"

var ErrMaxRounds = errors.New("maximum rounds reached")
