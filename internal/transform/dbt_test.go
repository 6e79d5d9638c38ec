package transform

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/configs"
)

func TestDBTSkipsWhenUnconfigured(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	d := NewDBT(configs.TransformConfig{}, logger)
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Expected an unconfigured transform to be a no-op, got %v", err)
	}
}
