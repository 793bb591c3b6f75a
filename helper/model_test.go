package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareModel(t *testing.T) {
	original := ModelDir
	ModelDir = t.TempDir()
	defer func() { ModelDir = original }()

	t.Run("Return existing model path when model exists", func(t *testing.T) {
		modelPath := filepath.Join(ModelDir, "test_mock-model")
		require.NoError(t, os.MkdirAll(modelPath, 0750), "Expected directory creation to succeed")

		path, err := PrepareModel("test/mock-model", "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error for existing model")
		assert.Equal(t, modelPath, path, "Expected returned path to match existing model path")
	})

	t.Run("Handle model name without slash", func(t *testing.T) {
		expectedPath := filepath.Join(ModelDir, "simple-model")
		require.NoError(t, os.MkdirAll(expectedPath, 0750), "Expected directory creation to succeed")

		path, err := PrepareModel("simple-model", "onnx/model.onnx")
		assert.NoError(t, err, "Expected PrepareModel to not return an error")
		assert.Equal(t, expectedPath, path, "Expected path to use model name directly")
	})
}
