package pagination

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, 1, NormalizeLimit(1))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))

	assert.NoError(t, Params{Limit: 0}.Validate())
	assert.True(t, pkgerrors.IsCode(Params{Limit: -1}.Validate(), pkgerrors.CodeValidation))
}

func TestCursorRoundTripKeepsScope(t *testing.T) {
	in := Cursor{Scope: "restock:pending", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(in.Encode(), "restock:pending")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	_, err = ParseCursor(in.Encode(), "restock:all")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseCursorInvalid(t *testing.T) {
	out, err := ParseCursor("  ", "audit")
	require.NoError(t, err)
	assert.Nil(t, out)

	for _, token := range []string{"not-base64!", Cursor{Scope: "audit"}.Encode()[:6]} {
		_, err = ParseCursor(token, "audit")
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), token)
	}
	assert.Empty(t, NextToken(nil))
}

type row struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}

func TestKeysetPagesNewestFirst(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:page_%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&row{}))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.Create(&row{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}).Error)
	}
	key := func(r row) (time.Time, uuid.UUID) { return r.CreatedAt, r.ID }

	var seen []time.Time
	var cursor *Cursor
	for pages := 0; pages < 5; pages++ {
		var rows []row
		require.NoError(t, Keyset(conn.Model(&row{}), cursor, 2).Find(&rows).Error)
		page, next := Trim(rows, 2, "rows", key)
		for _, r := range page {
			seen = append(seen, r.CreatedAt)
		}
		if next == nil {
			break
		}
		cursor, err = ParseCursor(next.Encode(), "rows")
		require.NoError(t, err)
	}

	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i].Before(seen[i-1]), "expected newest first")
	}
}
