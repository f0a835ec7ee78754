package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOKHasEmptyErrorAndNilAsError(t *testing.T) {
	assert.True(t, OK.IsOK())
	assert.Equal(t, "", OK.Error())
	assert.NoError(t, OK.AsError())
}

func TestNonOKStatusesProduceErrors(t *testing.T) {
	s := IOErrorf("disk full: %d bytes", 42)
	assert.True(t, s.IsIOError())
	assert.ErrorContains(t, s.AsError(), "disk full: 42 bytes")
	assert.Contains(t, s.Error(), "IOError")
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, NotFound("x").IsNotFound())
	assert.True(t, DeleteOrder("x").IsDeleteOrder())
	assert.False(t, InvalidArgument("x").IsOK())
}
