package ai

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSnapshotStore struct {
	data      map[string]string
	loadOK    bool
	saveOK    bool
	saveCalls int
}

func (s *memSnapshotStore) TryLoad() (map[string]string, bool) {
	return s.data, s.loadOK
}

func (s *memSnapshotStore) TrySave(entries map[string]string) bool {
	s.saveCalls++
	if s.saveOK {
		s.data = entries
	}
	return s.saveOK
}

func TestAnswerCacheKeyNormalization(t *testing.T) {
	t.Parallel()
	c := NewAnswerCache(10, nil, nil)

	c.Put("¿Cuánto cuesta la matrícula?", "S/. 200.00")
	got, ok := c.Get("cuanto cuesta la matrícula!!")
	require.True(t, ok)
	assert.Equal(t, "S/. 200.00", got)
}

func TestAnswerCacheFIFOEviction(t *testing.T) {
	t.Parallel()
	c := NewAnswerCache(3, nil, nil)

	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("pregunta %d", i), fmt.Sprintf("respuesta %d", i))
	}
	// Updating an existing key must not refresh its eviction slot.
	c.Put("pregunta 1", "respuesta 1 actualizada")

	c.Put("pregunta 4", "respuesta 4")
	_, ok := c.Get("pregunta 1")
	assert.False(t, ok, "oldest insertion is evicted first")
	for i := 2; i <= 4; i++ {
		_, ok := c.Get(fmt.Sprintf("pregunta %d", i))
		assert.True(t, ok, "pregunta %d", i)
	}
	assert.Equal(t, 3, c.Len())
}

func TestAnswerCacheIgnoresEmpty(t *testing.T) {
	t.Parallel()
	c := NewAnswerCache(10, nil, nil)

	c.Put("", "algo")
	c.Put("¿?", "algo")
	c.Put("pregunta", "")
	assert.Zero(t, c.Len())

	_, ok := c.Get("")
	assert.False(t, ok)
}

func TestAnswerCachePersistsAfterEveryWrite(t *testing.T) {
	t.Parallel()
	store := &memSnapshotStore{saveOK: true}
	c := NewAnswerCache(10, store, nil)

	c.Put("pregunta uno", "respuesta uno")
	c.Put("pregunta dos", "respuesta dos")
	assert.Equal(t, 2, store.saveCalls)
	assert.Len(t, store.data, 2)
}

func TestAnswerCacheSurvivesFailingStore(t *testing.T) {
	t.Parallel()
	store := &memSnapshotStore{saveOK: false}
	c := NewAnswerCache(10, store, nil)

	c.Put("pregunta", "respuesta con persistencia rota")
	got, ok := c.Get("pregunta")
	require.True(t, ok)
	assert.Equal(t, "respuesta con persistencia rota", got)
}

func TestAnswerCacheRestoresSnapshot(t *testing.T) {
	t.Parallel()
	store := &memSnapshotStore{
		data:   map[string]string{"pregunta vieja": "respuesta vieja"},
		loadOK: true,
		saveOK: true,
	}
	c := NewAnswerCache(10, store, nil)

	got, ok := c.Get("pregunta vieja")
	require.True(t, ok)
	assert.Equal(t, "respuesta vieja", got)
}

func TestAnswerCacheRestoreRespectsCapacity(t *testing.T) {
	t.Parallel()
	data := map[string]string{}
	for i := 0; i < 10; i++ {
		data[fmt.Sprintf("pregunta %02d", i)] = "respuesta"
	}
	c := NewAnswerCache(4, &memSnapshotStore{data: data, loadOK: true}, nil)
	assert.Equal(t, 4, c.Len())
}
