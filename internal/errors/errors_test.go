package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryAndSeverityFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{ErrCodeImageDecode, CategoryIO, SeverityWarning},
		{ErrCodeFileStat, CategoryIO, SeverityWarning},
		{ErrCodeStoreRead, CategoryIO, SeverityFatal},
		{ErrCodeStoreWrite, CategoryIO, SeverityFatal},
		{ErrCodeIndexLocked, CategoryIO, SeverityFatal},
		{ErrCodeEncodeBatch, CategoryEncoder, SeverityWarning},
		{ErrCodeEncoderUnavailable, CategoryEncoder, SeverityError},
		{ErrCodeInvalidQuery, CategoryValidation, SeverityError},
		{ErrCodeInternal, CategoryInternal, SeverityError},
	}
	for _, tt := range tests {
		err := New(tt.code, "msg", nil)
		assert.Equal(t, tt.category, err.Category, tt.code)
		assert.Equal(t, tt.severity, err.Severity, tt.code)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeImageDecode, "cannot decode image /x.png", nil)
	assert.Equal(t, "[ERR_202_IMAGE_DECODE] cannot decode image /x.png", err.Error())
}

func TestUnwrapAndIs(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := New(ErrCodeStoreWrite, "write failed", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, New(ErrCodeStoreWrite, "other message", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeStoreRead, "write failed", nil)))
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(ErrCodeStoreRead, cause)
	require.NotNil(t, err)
	assert.Equal(t, "underlying", err.Message)
	assert.Equal(t, cause, err.Cause)

	assert.Nil(t, Wrap(ErrCodeStoreRead, nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(StoreWriteError("boom", nil)))
	assert.True(t, IsFatal(StoreReadError("boom", nil)))
	assert.False(t, IsFatal(DecodeError("/x.png", nil)))
	assert.False(t, IsFatal(StatError("/x.png", nil)))
	assert.False(t, IsFatal(EncodeBatchError(8, nil)))
	assert.False(t, IsFatal(fmt.Errorf("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWithDetail(t *testing.T) {
	err := DecodeError("/photos/a.png", nil).WithDetail("format", "png")
	assert.Equal(t, "/photos/a.png", err.Details["path"])
	assert.Equal(t, "png", err.Details["format"])
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeEncodeBatch, GetCode(EncodeBatchError(4, nil)))
	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
}
