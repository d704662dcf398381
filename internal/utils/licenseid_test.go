// internal/utils/licenseid_test.go
package utils

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLicenseRefFormat(t *testing.T) {
	ref := NewLicenseRef("sync")

	parts := strings.Split(ref, "-")
	assert.Len(t, parts, 4)
	assert.Equal(t, "SL", parts[0])
	assert.Equal(t, fmt.Sprintf("%d", time.Now().Year()), parts[1])
	assert.Equal(t, "SYNC", parts[2])
	assert.Len(t, parts[3], 12)
	assert.Equal(t, strings.ToUpper(parts[3]), parts[3])
}

func TestNewLicenseRefEmptyTypeCode(t *testing.T) {
	ref := NewLicenseRef("  ")
	assert.Contains(t, ref, "-GEN-")
}

func TestNewLicenseRefConcurrentUniqueness(t *testing.T) {
	const workers = 20
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, NewLicenseRef("master"))
			}
			mu.Lock()
			for _, ref := range local {
				seen[ref] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker, "concurrent generation must not collide")
}

func TestSanitizeFileLabel(t *testing.T) {
	assert.Equal(t, "midnight-run", SanitizeFileLabel("Midnight Run"))
	assert.Equal(t, "caf-del-mar", SanitizeFileLabel("  Café del Mar!  "))
	assert.Equal(t, "untitled", SanitizeFileLabel("!!!"))
	assert.Equal(t, "untitled", SanitizeFileLabel(""))

	long := SanitizeFileLabel(strings.Repeat("a very long title ", 10))
	assert.LessOrEqual(t, len(long), 60)
}
