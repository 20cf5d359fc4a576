package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()

	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestRequestID(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(RequestIDHeader, "from-header")
	assert.Equal(t, "from-header", RequestID(r))

	r = r.WithContext(WithRequestID(r.Context(), "from-context"))
	assert.Equal(t, "from-context", RequestID(r))

	bare := httptest.NewRequest("GET", "/", nil)
	assert.NotEmpty(t, RequestID(bare))
}
