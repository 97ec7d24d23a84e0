package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputKey(t *testing.T) {
	assert.Equal(t, "date/0f8c.log", OutputKey("date", "0f8c"))
}

func TestNewClient_DefaultBucket(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "127.0.0.1:9000", AccessKey: "minio", SecretKey: "minio123"})
	require.NoError(t, err)
	assert.Equal(t, "jobledger-outputs", c.Bucket())
}
