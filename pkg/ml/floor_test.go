package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorBucket(t *testing.T) {
	assert.Equal(t, "0", FloorBucket(0))
	assert.Equal(t, "3", FloorBucket(3))
	assert.Equal(t, "10", FloorBucket(10), "floor ten is the last literal bucket")
	assert.Equal(t, HighFloorBucket, FloorBucket(11))
	assert.Equal(t, HighFloorBucket, FloorBucket(42))
}
