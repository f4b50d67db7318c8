package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreFilter(t *testing.T) {
	assert.Empty(t, storeFilter(nil))
	assert.Equal(t, " AND store_id IN (1, 22)", storeFilter([]int64{1, 22}))
}

func TestActiveEntitiesQuery(t *testing.T) {
	q := activeEntitiesQuery("daily_sales", []int64{5})
	assert.Contains(t, q, "FROM daily_sales")
	assert.Contains(t, q, "store_id IN (5)")
	assert.Contains(t, q, "HAVING count() >= ?")
}

func TestEntityHistoryQueryIsOrdered(t *testing.T) {
	q := entityHistoryQuery("daily_sales")
	assert.Contains(t, q, "WHERE item_id = ? AND store_id = ?")
	assert.Contains(t, q, "ORDER BY sale_date")
}
