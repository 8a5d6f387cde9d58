package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"tendering/db/storetest"

	"github.com/stretchr/testify/require"
)

// newTestStore создаёт отдельную базу в MONGO_URI и удаляет её после теста
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI is not set")
	}
	name := fmt.Sprintf("tendering_test_%d", time.Now().UnixNano())
	s, err := Connect(t.Context(), uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestStoreIntegration(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return newTestStore(t) })
}

func TestStoreSeedsUserTypes(t *testing.T) {
	s := newTestStore(t)
	types, err := s.ListUserTypes(t.Context())
	require.NoError(t, err)
	require.Len(t, types, 4)

	// повторное подключение не дублирует базовые типы
	require.NoError(t, s.seedUserTypes(t.Context()))
	types, err = s.ListUserTypes(t.Context())
	require.NoError(t, err)
	require.Len(t, types, 4)
}
