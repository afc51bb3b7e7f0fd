package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:users_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	return conn
}

func TestEmailFor(t *testing.T) {
	conn := openTestDB(t)
	active := &models.User{Email: "Orders@Acme.Test", FirstName: "Ada", LastName: "Supplier", Role: "supplier", IsActive: true}
	require.NoError(t, conn.Create(active).Error)
	inactive := &models.User{Email: "gone@acme.test", FirstName: "Old", LastName: "Supplier", Role: "supplier"}
	require.NoError(t, conn.Create(inactive).Error)
	require.NoError(t, conn.Model(inactive).Update("is_active", false).Error)

	repo := NewRepository(conn)
	lookup, err := NewEmailLookup(repo)
	require.NoError(t, err)

	email, err := lookup.EmailFor(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders@acme.test", email)

	_, err = lookup.EmailFor(context.Background(), inactive.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = lookup.EmailFor(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	contact, err := repo.FindContact(context.Background(), inactive.ID)
	require.NoError(t, err)
	assert.Equal(t, "gone@acme.test", contact.Email)
	assert.False(t, contact.IsActive)
}
