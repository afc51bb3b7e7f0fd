package restock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	"github.com/angelmondragon/storefront-backoffice/internal/inventory"
	"github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/mailer"
	"github.com/angelmondragon/storefront-backoffice/pkg/security"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

const testSecret = "restock-test-secret-0123456789"

type sentMail struct {
	To       string
	Subject  string
	Template mailer.Template
	Data     any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject string, tmpl mailer.Template, data any) (mailer.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return mailer.SendResult{}, m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Template: tmpl, Data: data})
	return mailer.SendResult{MessageID: fmt.Sprintf("<msg-%d@test>", len(m.sent))}, nil
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type fakeProducts struct{}

func (fakeProducts) DisplayName(context.Context, uuid.UUID) (string, error) {
	return "Heavyweight Tee", nil
}

type testEnv struct {
	conn   *gorm.DB
	svc    *service
	mailer *fakeMailer
	clock  *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:restock_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.InventoryItem{}, &models.InventoryAuditEntry{}, &models.RestockRequest{}))

	client := db.NewFromConn(conn)
	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	require.NoError(t, err)
	inventorySvc, err := inventory.NewService(inventory.NewRepository(conn), auditSvc, client, nil, nil)
	require.NoError(t, err)
	cipher, err := security.NewCodeCipher(secret)
	require.NoError(t, err)

	mail := &fakeMailer{}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Inventory: inventorySvc,
		Tx:        client,
		Cipher:    cipher,
		Mailer:    mail,
		Products:  fakeProducts{},
	})
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	impl := svc.(*service)
	impl.now = clock.Now
	return &testEnv{conn: conn, svc: impl, mailer: mail, clock: clock}
}

func (e *testEnv) seedItem(t *testing.T, stock types.SizeQuantities, supplierEmail *string) *models.InventoryItem {
	t.Helper()
	name := "Acme Knits"
	item := &models.InventoryItem{ProductID: uuid.New(), Stock: stock, SupplierName: &name, SupplierEmail: supplierEmail}
	require.NoError(t, e.conn.Create(item).Error)
	return item
}

// create returns the request and the plaintext code captured from the outgoing email.
func (e *testEnv) create(t *testing.T, item *models.InventoryItem, requested types.SizeQuantities) (*CreateResult, string) {
	t.Helper()
	res, err := e.svc.Create(context.Background(), CreateInput{
		InventoryID: item.ID,
		Requested:   requested,
		Actor:       adminActor(),
	})
	require.NoError(t, err)
	mail := e.mailer.last(t)
	data, ok := mail.Data.(mailer.RestockRequestedData)
	require.True(t, ok)
	return res, data.Code
}

func (e *testEnv) stock(t *testing.T, id uuid.UUID) types.SizeQuantities {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, e.conn.First(&item, "id = ?", id).Error)
	return item.Stock
}

func (e *testEnv) auditEntries(t *testing.T, id uuid.UUID) []models.InventoryAuditEntry {
	t.Helper()
	var entries []models.InventoryAuditEntry
	require.NoError(t, e.conn.Where("inventory_id = ?", id).Find(&entries).Error)
	return entries
}

func adminActor() audit.Actor {
	id := uuid.New()
	return audit.Actor{UserID: &id, Role: enums.ActorRoleAdmin}
}

func supplierActor() audit.Actor {
	id := uuid.New()
	return audit.Actor{UserID: &id, Role: enums.ActorRoleSupplier}
}

func strPtr(v string) *string { return &v }

func TestCreateIssuesCodeAndEmailsSupplier(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{S: 10}, strPtr("orders@acme.test"))

	res, code := env.create(t, item, types.SizeQuantities{M: 5})
	require.Len(t, code, security.DefaultRestockCodeLength)

	assert.True(t, res.Notification.Sent)
	require.NotNil(t, res.Notification.MessageID)
	assert.Equal(t, enums.RestockStatusPending, res.Request.Status)
	assert.Equal(t, "orders@acme.test", res.Request.SupplierEmail)
	assert.Equal(t, security.RestockCodeHint(code), res.Request.CodeHint)
	assert.Equal(t, env.clock.Now().Add(defaultCodeTTL), res.Request.ExpiresAt)
	assert.Equal(t, "orders@acme.test", env.mailer.last(t).To)

	var stored models.RestockRequest
	require.NoError(t, env.conn.First(&stored, "id = ?", res.Request.ID).Error)
	assert.Equal(t, security.HashRestockCode(code), stored.CodeHash)
	require.NotNil(t, stored.CodeEncrypted)
	assert.NotContains(t, *stored.CodeEncrypted, code)

	cipher, err := security.NewCodeCipher(testSecret)
	require.NoError(t, err)
	decrypted, err := cipher.Decrypt(*stored.CodeEncrypted)
	require.NoError(t, err)
	assert.Equal(t, code, decrypted)
}

func TestCreateWithoutSecretStoresHashOnly(t *testing.T) {
	env := newTestEnv(t, "")
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))

	res, _ := env.create(t, item, types.SizeQuantities{S: 1})

	var stored models.RestockRequest
	require.NoError(t, env.conn.First(&stored, "id = ?", res.Request.ID).Error)
	assert.Nil(t, stored.CodeEncrypted)
	assert.NotEmpty(t, stored.CodeHash)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, nil)

	cases := map[string]CreateInput{
		"all zero":      {InventoryID: item.ID},
		"negative":      {InventoryID: item.ID, Requested: types.SizeQuantities{S: 2, M: -1}},
		"no email":      {InventoryID: item.ID, Requested: types.SizeQuantities{S: 1}},
		"bad email":     {InventoryID: item.ID, Requested: types.SizeQuantities{S: 1}, SupplierEmail: strPtr("nope")},
		"missing item":  {InventoryID: uuid.Nil, Requested: types.SizeQuantities{S: 1}},
		"note too long": {InventoryID: item.ID, Requested: types.SizeQuantities{S: 1}, SupplierEmail: strPtr("a@b.test"), Note: strPtr(strings.Repeat("x", maxNoteLength+1))},
		"oversized":     {InventoryID: item.ID, Requested: types.SizeQuantities{S: math.MaxInt}, SupplierEmail: strPtr("a@b.test")},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Create(context.Background(), input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, env.conn.Model(&models.RestockRequest{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err := env.svc.Create(context.Background(), CreateInput{InventoryID: uuid.New(), Requested: types.SizeQuantities{S: 1}, SupplierEmail: strPtr("a@b.test")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateCountsNoteLengthInCharacters(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))

	note := strings.Repeat("é", maxNoteLength)
	res, err := env.svc.Create(context.Background(), CreateInput{
		InventoryID: item.ID,
		Requested:   types.SizeQuantities{S: 1},
		Note:        &note,
		Actor:       adminActor(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Request.Note)
	assert.Equal(t, note, *res.Request.Note)

	tooLong := note + "é"
	_, err = env.svc.Create(context.Background(), CreateInput{InventoryID: item.ID, Requested: types.SizeQuantities{S: 1}, Note: &tooLong})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestCreatePersistsNewSupplierOntoItem(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, nil)

	res, err := env.svc.Create(context.Background(), CreateInput{
		InventoryID:   item.ID,
		Requested:     types.SizeQuantities{L: 4},
		SupplierName:  strPtr("North Mill"),
		SupplierEmail: strPtr("Sales@NorthMill.test"),
		Note:          strPtr("before the weekend"),
		Actor:         adminActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, "sales@northmill.test", res.Request.SupplierEmail)

	var reloaded models.InventoryItem
	require.NoError(t, env.conn.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, "North Mill", *reloaded.SupplierName)
	assert.Equal(t, "sales@northmill.test", *reloaded.SupplierEmail)
}

func TestCreateSucceedsWhenEmailFails(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))
	env.mailer.err = errors.New("smtp down")

	res, err := env.svc.Create(context.Background(), CreateInput{InventoryID: item.ID, Requested: types.SizeQuantities{S: 1}})
	require.NoError(t, err)
	assert.False(t, res.Notification.Sent)
	require.NotNil(t, res.Notification.Error)
	assert.Contains(t, *res.Notification.Error, "smtp down")
}

func TestFulfillAppliesRestock(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{S: 10, M: 0}, strPtr("orders@acme.test"))
	created, code := env.create(t, item, types.SizeQuantities{S: 0, M: 5})

	res, err := env.svc.Fulfill(context.Background(), FulfillInput{
		Code:        strings.ToLower(code),
		CallerEmail: "ORDERS@acme.test",
		Actor:       supplierActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, types.SizeQuantities{S: 10, M: 5}, res.Stock)
	assert.Equal(t, enums.RestockStatusFulfilled, res.Request.Status)
	require.NotNil(t, res.Request.FulfilledAt)
	assert.True(t, res.Notification.Sent)
	assert.Equal(t, mailer.TemplateRestockReceived, env.mailer.last(t).Template)

	assert.Equal(t, types.SizeQuantities{S: 10, M: 5}, env.stock(t, item.ID))
	entries := env.auditEntries(t, item.ID)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, enums.AuditActionRestock, entry.Action)
	assert.Equal(t, types.SizeQuantities{S: 10, M: 0}, entry.Before)
	assert.Equal(t, types.SizeQuantities{S: 10, M: 5}, entry.After)
	assert.Equal(t, res.AuditEntryID, entry.ID)
	require.NotNil(t, entry.RestockRequestID)
	assert.Equal(t, created.Request.ID, *entry.RestockRequestID)
	require.NotNil(t, entry.Reason)
	assert.Contains(t, *entry.Reason, created.Request.ID.String())

	var reloaded models.InventoryItem
	require.NoError(t, env.conn.First(&reloaded, "id = ?", item.ID).Error)
	require.NotNil(t, reloaded.LastRestockedAt)

	_, err = env.svc.Fulfill(context.Background(), FulfillInput{Code: code, CallerEmail: "orders@acme.test", Actor: supplierActor()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCode))
	assert.Equal(t, types.SizeQuantities{S: 10, M: 5}, env.stock(t, item.ID))
	assert.Len(t, env.auditEntries(t, item.ID), 1)
}

func TestFulfillRejectionsAreGeneric(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{S: 1}, strPtr("orders@acme.test"))
	_, code := env.create(t, item, types.SizeQuantities{S: 3})

	attempts := map[string]FulfillInput{
		"unknown code":   {Code: "ZZZZZZZZZZ", CallerEmail: "orders@acme.test"},
		"empty code":     {Code: "   ", CallerEmail: "orders@acme.test"},
		"other supplier": {Code: code, CallerEmail: "someone@else.test"},
	}
	for name, input := range attempts {
		t.Run(name, func(t *testing.T) {
			input.Actor = supplierActor()
			_, err := env.svc.Fulfill(context.Background(), input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeInvalidCode, typed.Code())
			assert.Equal(t, "invalid code", typed.Message())
			assert.Nil(t, typed.Details())
		})
	}
	assert.Equal(t, types.SizeQuantities{S: 1}, env.stock(t, item.ID))
}

func TestFulfillExpiredCode(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))
	created, code := env.create(t, item, types.SizeQuantities{S: 3})

	env.clock.Advance(defaultCodeTTL)
	_, err := env.svc.Fulfill(context.Background(), FulfillInput{Code: code, CallerEmail: "orders@acme.test", Actor: supplierActor()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCode))
	assert.Equal(t, types.SizeQuantities{}, env.stock(t, item.ID))

	list, err := env.svc.List(context.Background(), ListInput{Status: enums.RestockFilterExpired})
	require.NoError(t, err)
	require.Len(t, list.Requests, 1)
	assert.Equal(t, created.Request.ID, list.Requests[0].ID)
	assert.Equal(t, enums.RestockStatusExpired, list.Requests[0].Status)

	count, err := env.svc.CountExpiredOpen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentFulfillAppliesOnce(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{S: 2}, strPtr("orders@acme.test"))
	_, code := env.create(t, item, types.SizeQuantities{S: 4})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Fulfill(context.Background(), FulfillInput{Code: code, CallerEmail: "orders@acme.test", Actor: supplierActor()})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCode), "got %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, types.SizeQuantities{S: 6}, env.stock(t, item.ID))
	assert.Len(t, env.auditEntries(t, item.ID), 1)
}

func TestFulfillRejectsStockAboveMaximum(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{S: types.MaxQuantity - 1}, strPtr("orders@acme.test"))
	created, code := env.create(t, item, types.SizeQuantities{S: 5})

	_, err := env.svc.Fulfill(context.Background(), FulfillInput{Code: code, CallerEmail: "orders@acme.test", Actor: supplierActor()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, types.SizeQuantities{S: types.MaxQuantity - 1}, env.stock(t, item.ID))
	assert.Empty(t, env.auditEntries(t, item.ID))

	var reloaded models.RestockRequest
	require.NoError(t, env.conn.First(&reloaded, "id = ?", created.Request.ID).Error)
	assert.Nil(t, reloaded.FulfilledAt)
	assert.Equal(t, enums.RestockStatusPending, reloaded.StatusAt(env.clock.Now()))
}

// staleRepository replays a lookup taken before another redemption committed.
type staleRepository struct {
	Repository
	snapshot *models.RestockRequest
}

func (r *staleRepository) FindByCodeHash(context.Context, string) (*models.RestockRequest, error) {
	copied := *r.snapshot
	return &copied, nil
}

func TestFulfillLosingCompareAndSwapLeavesStockAlone(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{S: 2}, strPtr("orders@acme.test"))
	created, code := env.create(t, item, types.SizeQuantities{S: 4})

	snapshot, err := env.svc.repo.FindByCodeHash(context.Background(), security.HashRestockCode(code))
	require.NoError(t, err)
	require.Nil(t, snapshot.FulfilledAt)

	winner := supplierActor()
	_, err = env.svc.Fulfill(context.Background(), FulfillInput{Code: code, CallerEmail: "orders@acme.test", Actor: winner})
	require.NoError(t, err)

	env.svc.repo = &staleRepository{Repository: env.svc.repo, snapshot: snapshot}
	_, err = env.svc.Fulfill(context.Background(), FulfillInput{Code: code, CallerEmail: "orders@acme.test", Actor: supplierActor()})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvalidCode, typed.Code())
	assert.Equal(t, "invalid code", typed.Message())

	assert.Equal(t, types.SizeQuantities{S: 6}, env.stock(t, item.ID))
	assert.Len(t, env.auditEntries(t, item.ID), 1)

	var reloaded models.RestockRequest
	require.NoError(t, env.conn.First(&reloaded, "id = ?", created.Request.ID).Error)
	require.NotNil(t, reloaded.FulfilledBy)
	assert.Equal(t, *winner.UserID, *reloaded.FulfilledBy)
}

func TestScanSkipsOwnershipCheck(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{XL: 1}, strPtr("orders@acme.test"))
	_, code := env.create(t, item, types.SizeQuantities{XL: 2})

	res, err := env.svc.Scan(context.Background(), ScanInput{Code: code, Actor: audit.Actor{Role: enums.ActorRoleDevice}})
	require.NoError(t, err)
	assert.Equal(t, types.SizeQuantities{XL: 3}, res.Stock)

	_, err = env.svc.Scan(context.Background(), ScanInput{Code: code, Actor: audit.Actor{Role: enums.ActorRoleDevice}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCode))
}

func TestCancelPendingEvenWhenEmailFails(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{S: 1}, strPtr("orders@acme.test"))
	created, code := env.create(t, item, types.SizeQuantities{S: 3})
	env.mailer.err = errors.New("relay refused")

	res, err := env.svc.Cancel(context.Background(), CancelInput{
		RequestID: created.Request.ID,
		Reason:    strPtr("no longer needed"),
		Actor:     adminActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RestockStatusCancelled, res.Request.Status)
	require.NotNil(t, res.Request.CancelledReason)
	assert.Equal(t, "no longer needed", *res.Request.CancelledReason)
	assert.False(t, res.Notification.Sent)

	var stored models.RestockRequest
	require.NoError(t, env.conn.First(&stored, "id = ?", created.Request.ID).Error)
	require.NotNil(t, stored.CancelledAt)
	assert.Nil(t, stored.FulfilledAt)

	_, err = env.svc.Fulfill(context.Background(), FulfillInput{Code: code, CallerEmail: "orders@acme.test", Actor: supplierActor()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCode))
	assert.Equal(t, types.SizeQuantities{S: 1}, env.stock(t, item.ID))
}

func TestCancelNoticeIncludesDecryptedCode(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))
	created, code := env.create(t, item, types.SizeQuantities{S: 3})

	_, err := env.svc.Cancel(context.Background(), CancelInput{RequestID: created.Request.ID, Actor: adminActor()})
	require.NoError(t, err)

	data, ok := env.mailer.last(t).Data.(mailer.RestockCancelledData)
	require.True(t, ok)
	assert.Equal(t, code, data.Code)
	assert.Equal(t, security.RestockCodeHint(code), data.CodeHint)
}

func TestCancelNoticeFallsBackToHintAfterSecretRotation(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))
	created, code := env.create(t, item, types.SizeQuantities{S: 3})

	rotated, err := security.NewCodeCipher("a-completely-different-secret")
	require.NoError(t, err)
	env.svc.cipher = rotated

	res, err := env.svc.Cancel(context.Background(), CancelInput{RequestID: created.Request.ID, Actor: adminActor()})
	require.NoError(t, err)
	assert.True(t, res.Notification.Sent)

	data, ok := env.mailer.last(t).Data.(mailer.RestockCancelledData)
	require.True(t, ok)
	assert.Empty(t, data.Code)
	assert.Equal(t, security.RestockCodeHint(code), data.CodeHint)
}

func TestCancelNonPendingConflicts(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))

	fulfilled, code := env.create(t, item, types.SizeQuantities{S: 1})
	_, err := env.svc.Scan(context.Background(), ScanInput{Code: code, Actor: adminActor()})
	require.NoError(t, err)

	cancelled, _ := env.create(t, item, types.SizeQuantities{S: 1})
	_, err = env.svc.Cancel(context.Background(), CancelInput{RequestID: cancelled.Request.ID, Actor: adminActor()})
	require.NoError(t, err)

	expired, _ := env.create(t, item, types.SizeQuantities{S: 1})
	env.clock.Advance(defaultCodeTTL + time.Minute)

	cases := map[enums.RestockStatus]uuid.UUID{
		enums.RestockStatusFulfilled: fulfilled.Request.ID,
		enums.RestockStatusCancelled: cancelled.Request.ID,
		enums.RestockStatusExpired:   expired.Request.ID,
	}
	for status, id := range cases {
		t.Run(string(status), func(t *testing.T) {
			_, err := env.svc.Cancel(context.Background(), CancelInput{RequestID: id, Reason: strPtr("late"), Actor: adminActor()})
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
			assert.Contains(t, typed.Message(), string(status))

			var stored models.RestockRequest
			require.NoError(t, env.conn.First(&stored, "id = ?", id).Error)
			if status != enums.RestockStatusCancelled {
				assert.Nil(t, stored.CancelledAt)
			}
			assert.Nil(t, stored.CancelledReason)
		})
	}

	_, err = env.svc.Cancel(context.Background(), CancelInput{RequestID: uuid.New(), Actor: adminActor()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t, testSecret)
	item := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))
	other := env.seedItem(t, types.SizeQuantities{}, strPtr("orders@acme.test"))

	var pendingIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		res, _ := env.create(t, item, types.SizeQuantities{S: i + 1})
		pendingIDs = append(pendingIDs, res.Request.ID)
		env.clock.Advance(time.Second)
	}
	_, code := env.create(t, other, types.SizeQuantities{M: 1})
	_, err := env.svc.Scan(context.Background(), ScanInput{Code: code, Actor: adminActor()})
	require.NoError(t, err)

	page, err := env.svc.List(context.Background(), ListInput{InventoryID: &item.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Requests, 2)
	assert.Equal(t, pendingIDs[2], page.Requests[0].ID)
	assert.Equal(t, pendingIDs[1], page.Requests[1].ID)
	require.NotEmpty(t, page.NextCursor)

	next, err := env.svc.List(context.Background(), ListInput{InventoryID: &item.ID, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Requests, 1)
	assert.Equal(t, pendingIDs[0], next.Requests[0].ID)
	assert.Empty(t, next.NextCursor)

	fulfilled, err := env.svc.List(context.Background(), ListInput{Status: enums.RestockFilterFulfilled})
	require.NoError(t, err)
	require.Len(t, fulfilled.Requests, 1)
	assert.Equal(t, other.ID, fulfilled.Requests[0].InventoryID)

	all, err := env.svc.List(context.Background(), ListInput{Status: enums.RestockFilterAll})
	require.NoError(t, err)
	assert.Len(t, all.Requests, 4)

	_, err = env.svc.List(context.Background(), ListInput{Status: "bogus"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = env.svc.List(context.Background(), ListInput{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = env.svc.List(context.Background(), ListInput{Status: enums.RestockFilterAll, InventoryID: &item.ID, Cursor: page.NextCursor})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "pending cursor must not page another filter")
	_, err = env.svc.List(context.Background(), ListInput{Limit: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
