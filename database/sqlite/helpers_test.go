package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// setupTestRepo creates a repo with a unique table name for test isolation
func setupTestRepo(t *testing.T) hashdrop.ObjectIndex {
	t.Helper()

	ctx := context.Background()

	tableName := fmt.Sprintf("objects_%s", getRandomString(t))
	tables := hashdrop.Tables{Objects: tableName}

	db, err := sqlite.Connect(ctx, ":memory:", tables)
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	return db.GetRepo()
}

func object(content string) hashdrop.StoredObject {
	return hashdrop.StoredObject{
		Digest:           hashdrop.Digest([]byte(content)),
		Size:             int64(len(content)),
		ContentType:      "text/plain",
		OriginalFilename: content + ".txt",
	}
}
