package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTeeToFileWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	teed, closeFn, err := TeeToFile(zap.NewNop(), path)
	require.NoError(t, err)

	teed.Info("step finished", zap.String("step", "ingestion"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"step finished"`)
	assert.Contains(t, string(data), `"step":"ingestion"`)
}

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	tp, err := InitTracer(ServiceName, "")
	require.NoError(t, err)
	assert.Nil(t, tp)

	_, span := StartSpan(context.Background(), "noop")
	span.End()
}

func TestGetLoggerFallsBack(t *testing.T) {
	assert.NotNil(t, GetLogger())
	require.NoError(t, InitLogger("production"))
	assert.NotNil(t, GetLogger())
}
