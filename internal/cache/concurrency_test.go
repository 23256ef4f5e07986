package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/ir"
)

// Run with -race: readers hold records while writers merge into the cache.
func TestConcurrentUpdatesAndReads(t *testing.T) {
	c := newCollection(t, Options{})
	c.AddItem(ir.Record{"id": 1, "n": 0, "meta": map[string]any{"n": 0}})
	_, err := c.CreateCopy(1)
	require.NoError(t, err)

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			assert.NoError(t, c.UpdateItems([]ir.Record{{"id": 1, "n": i, "meta": map[string]any{"n": i}}}))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			page, err := c.Find(ir.Params{})
			if !assert.NoError(t, err) || !assert.Len(t, page.Data, 1) {
				return
			}
			r := page.Data[0]
			meta := r["meta"].(map[string]any)
			_ = meta["n"]
			meta["reader"] = i
			r["n"] = -1
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			r := c.Get(1, ir.Params{})
			for k := range r {
				_ = r[k]
			}
			for _, v := range c.KeyedByID() {
				v["scratch"] = true
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := c.EditCopy(1, func(cp ir.Record) {
				cp["meta"].(map[string]any)["copy"] = i
			})
			assert.NoError(t, err)
			assert.NoError(t, c.CommitCopy(1))
			_ = c.GetCopyByID(1)["meta"]
		}
	}()

	wg.Wait()

	got := c.Get(1, ir.Params{})
	assert.NotEqual(t, -1, got["n"])
	assert.NotContains(t, got, "scratch")
	assert.NotContains(t, got["meta"], "reader")
}

func TestGettersReturnIndependentRecords(t *testing.T) {
	c := newTodos(t, Options{}, WithTempIDs(NewFixedGenerator("t1")))
	c.AddItem(ir.Record{"description": "draft", "tags": []any{"a"}})
	_, err := c.CreateCopy(0)
	require.NoError(t, err)

	page, err := c.Find(ir.Params{Temps: true})
	require.NoError(t, err)
	for _, r := range page.Data {
		r["description"] = "changed"
	}
	c.List()[1]["description"] = "changed"
	c.Temps()[0]["tags"].([]any)[0] = "changed"
	c.KeyedByID()["2"]["description"] = "changed"
	c.TempsByID()["t1"]["description"] = "changed"
	c.Copies()[0]["description"] = "changed"
	c.CopiesByID()["0"]["description"] = "changed"
	c.ItemsTempsAndClones()[3]["description"] = "changed"

	for _, r := range c.List() {
		assert.NotEqual(t, "changed", r["description"])
	}
	temp := c.Get("t1", ir.Params{})
	assert.Equal(t, "draft", temp["description"])
	assert.Equal(t, []any{"a"}, temp["tags"])
	assert.Equal(t, "Do the first", c.GetCopyByID(0)["description"])
}
