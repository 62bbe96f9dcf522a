package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
)

func TestBillEncoding(t *testing.T) {
	assert.Equal(t, entities.Available(123.45), decodeBill(encodeBill(123.45)))
	assert.Equal(t, entities.Available(0), decodeBill(encodeBill(0)))
	assert.Equal(t, entities.Unavailable, decodeBill(""))
	assert.Equal(t, entities.Unavailable, decodeBill("NaN"))
	assert.Equal(t, entities.Unavailable, decodeBill("garbage"))
}

func TestKeyPrefix(t *testing.T) {
	r := &RedisCache{prefix: "home1"}
	assert.Equal(t, "home1:prev_month", r.key("prev_month"))
}
