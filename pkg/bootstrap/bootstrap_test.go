package bootstrap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

func TestCloseReleasesInReverseOnce(t *testing.T) {
	var buf bytes.Buffer
	var order []string
	rt := &Runtime{Logger: logger.New(logger.Options{ServiceName: "test", Output: &buf})}
	rt.closers = []func() error{
		func() error { order = append(order, "db"); return nil },
		func() error { order = append(order, "redis"); return errors.New("redis gone") },
	}

	rt.Close()
	rt.Close()

	assert.Equal(t, []string{"redis", "db"}, order)
	assert.Contains(t, buf.String(), "redis gone")
}
