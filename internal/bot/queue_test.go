package bot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatQueue_OrderPerChat(t *testing.T) {
	q := newChatQueue()
	const n = 200

	var mu sync.Mutex
	got := map[int64][]int{}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, chatID := range []int64{1, 2} {
			i, chatID := i, chatID
			wg.Add(1)
			q.push(chatID, func() {
				defer wg.Done()
				mu.Lock()
				got[chatID] = append(got[chatID], i)
				mu.Unlock()
			})
		}
	}
	wg.Wait()

	for _, chatID := range []int64{1, 2} {
		assert.Len(t, got[chatID], n)
		for i, v := range got[chatID] {
			if !assert.Equal(t, i, v, "chat %d", chatID) {
				break
			}
		}
	}
}
