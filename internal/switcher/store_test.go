package switcher

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryStore_starts_primary(t *testing.T) {
	assert.Equal(t, Primary, NewInMemoryStore().Active())
}

func TestInMemoryStore_SetActive(t *testing.T) {
	s := NewInMemoryStore()
	s.SetActive(Backup)
	assert.Equal(t, Backup, s.Active())
	s.SetActive(Primary)
	assert.Equal(t, Primary, s.Active())
}

func TestInMemoryStore_concurrent_readers(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if r := s.Active(); r != Primary && r != Backup {
					assert.Failf(t, "unexpected role", "%d", r)
					return
				}
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		s.SetActive(Role(j % 2))
	}
	wg.Wait()
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "primary", Primary.String())
	assert.Equal(t, "backup", Backup.String())
	assert.Equal(t, "unknown", Role(7).String())
}
