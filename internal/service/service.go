package service

import (
	"errors"

	"github.com/smartcity/predictor/internal/domain"
)

// DataRepository is re-exported from domain for convenience
type DataRepository = domain.DataRepository

// ErrNoData is returned when an operation needs historical data and none is loaded
var ErrNoData = errors.New("service: no historical data loaded")
