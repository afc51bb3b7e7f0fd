package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:audit_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.InventoryAuditEntry{}))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, now time.Time) *service {
	t.Helper()
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return now }
	return impl
}

func adminActor() Actor {
	id := uuid.New()
	return Actor{UserID: &id, Role: enums.ActorRoleAdmin}
}

func TestAppendValidatesSnapshot(t *testing.T) {
	svc := newTestService(t, newTestDB(t), time.Now().UTC())
	base := AppendInput{
		InventoryID: uuid.New(),
		ProductID:   uuid.New(),
		Action:      enums.AuditActionRestock,
		Delta:       types.SizeQuantities{M: 5},
		Before:      types.SizeQuantities{S: 10},
		After:       types.SizeQuantities{S: 10, M: 5},
		PerformedBy: adminActor(),
	}

	entry, err := svc.Append(context.Background(), base)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Nil(t, entry.Reason)

	mismatched := base
	mismatched.After = types.SizeQuantities{S: 10, M: 4}
	_, err = svc.Append(context.Background(), mismatched)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))

	negative := base
	negative.Delta = types.SizeQuantities{S: -11}
	negative.After = types.SizeQuantities{S: -1}
	_, err = svc.Append(context.Background(), negative)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvariant))
}

func TestAppendAdjustRequiresReason(t *testing.T) {
	svc := newTestService(t, newTestDB(t), time.Now().UTC())
	input := AppendInput{
		InventoryID: uuid.New(),
		ProductID:   uuid.New(),
		Action:      enums.AuditActionAdjust,
		Delta:       types.SizeQuantities{S: -2},
		Before:      types.SizeQuantities{S: 10},
		After:       types.SizeQuantities{S: 8},
		Reason:      "   ",
		PerformedBy: adminActor(),
	}
	_, err := svc.Append(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input.Reason = " damaged in transit "
	entry, err := svc.Append(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, entry.Reason)
	assert.Equal(t, "damaged in transit", *entry.Reason)
}

func TestQueryNewestFirstWithCursor(t *testing.T) {
	conn := newTestDB(t)
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	inventoryID := uuid.New()
	productID := uuid.New()
	otherInventory := uuid.New()

	stock := types.SizeQuantities{}
	for i := 0; i < 5; i++ {
		svc := newTestService(t, conn, base.Add(time.Duration(i)*time.Minute))
		delta := types.SizeQuantities{S: 1}
		_, err := svc.Append(context.Background(), AppendInput{
			InventoryID: inventoryID,
			ProductID:   productID,
			Action:      enums.AuditActionRestock,
			Delta:       delta,
			Before:      stock,
			After:       stock.Add(delta),
			PerformedBy: adminActor(),
		})
		require.NoError(t, err)
		stock = stock.Add(delta)
	}
	other := newTestService(t, conn, base)
	_, err := other.Append(context.Background(), AppendInput{
		InventoryID: otherInventory,
		ProductID:   uuid.New(),
		Action:      enums.AuditActionRestock,
		Delta:       types.SizeQuantities{L: 1},
		After:       types.SizeQuantities{L: 1},
		PerformedBy: adminActor(),
	})
	require.NoError(t, err)

	svc := newTestService(t, conn, base)
	page, err := svc.Query(context.Background(), QueryInput{InventoryID: &inventoryID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)
	assert.Equal(t, 5, page.Entries[0].After.S)
	assert.Equal(t, 3, page.Entries[2].After.S)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.Query(context.Background(), QueryInput{InventoryID: &inventoryID, Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Entries, 2)
	assert.Equal(t, 2, next.Entries[0].After.S)
	assert.Equal(t, 1, next.Entries[1].After.S)
	assert.Empty(t, next.NextCursor)

	byProduct, err := svc.Query(context.Background(), QueryInput{ProductID: &productID})
	require.NoError(t, err)
	assert.Len(t, byProduct.Entries, 5)

	_, err = svc.Query(context.Background(), QueryInput{ProductID: &productID, Cursor: page.NextCursor})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "inventory cursor must not page the product trail")
}

func TestQueryRequiresExactlyOneScope(t *testing.T) {
	svc := newTestService(t, newTestDB(t), time.Now().UTC())
	_, err := svc.Query(context.Background(), QueryInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	a, b := uuid.New(), uuid.New()
	_, err = svc.Query(context.Background(), QueryInput{InventoryID: &a, ProductID: &b})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Query(context.Background(), QueryInput{InventoryID: &a, Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
