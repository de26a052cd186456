package factory

import (
	"fmt"

	"github.com/kilianp07/smartcharge/connectors"
	"github.com/kilianp07/smartcharge/connectors/clients/elpris"
	"github.com/kilianp07/smartcharge/connectors/clients/mock"
)

const (
	IDElpris = "elpris"
	IDMock   = "mock"
)

var (
	errUnknownClient = "unknown connector id: %s"
)

func NewSpotPriceClient(id string) (connectors.SpotPriceClient, error) {
	switch id {
	case IDElpris:
		return &elpris.Client{}, nil
	case IDMock:
		return &mock.Client{}, nil
	default:
		return nil, fmt.Errorf(errUnknownClient, id)
	}
}
