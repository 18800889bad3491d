package s3blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	_, err = New(context.Background(), ClientConfig{Bucket: "archives"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		useSSL   bool
		want     string
	}{
		{"scheme preserved", "https://s3.example.com", false, "https://s3.example.com"},
		{"ssl prepends https", "minio.internal:9000", true, "https://minio.internal:9000"},
		{"plain prepends http", "minio.internal:9000", false, "http://minio.internal:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normaliseEndpoint(tt.endpoint, tt.useSSL))
		})
	}
}
