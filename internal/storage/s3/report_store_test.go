package s3_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"billrecon/internal/storage/s3"
)

func TestReportKey(t *testing.T) {
	id := uuid.MustParse("5b3f3c1e-9a1d-4c7e-8f00-0a1b2c3d4e5f")
	assert.Equal(t, "reports/5b3f3c1e-9a1d-4c7e-8f00-0a1b2c3d4e5f/success.csv", s3.ReportKey(id, "success.csv"))
}
