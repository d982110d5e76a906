//go:build integration

package orders

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pielancer314/PizzaForPi/database"
	"github.com/pielancer314/PizzaForPi/model"
)

// Run with: go test -tags integration ./orders/...
// A Docker daemon is required; DOCKER_URL overrides the default endpoint.

const (
	pgUser     = "postgres"
	pgPassword = "secret"
	pgPort     = "5432"
	pgDB       = "pizzaforpi"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool(os.Getenv("DOCKER_URL"))
	if err != nil {
		log.Fatalf("Creating docker pool: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=" + pgUser,
			"POSTGRES_PASSWORD=" + pgPassword,
			"POSTGRES_DB=" + pgDB,
		},
		ExposedPorts: []string{pgPort},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Starting postgres: %v", err)
	}
	_ = resource.Expire(120)

	dsn := fmt.Sprintf("host=localhost port=%s user=%s password=%s dbname=%s sslmode=disable",
		resource.GetPort(pgPort+"/tcp"), pgUser, pgPassword, pgDB)
	if err := pool.Retry(func() error {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
		testDB = db
		return nil
	}); err != nil {
		log.Fatalf("Connecting to postgres: %v", err)
	}
	if err := database.Migrate(testDB); err != nil {
		log.Fatalf("Migrating: %v", err)
	}

	code := m.Run()

	if err := pool.Purge(resource); err != nil {
		log.Printf("WARNING: purging postgres failed: %v", err)
	}
	os.Exit(code)
}

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	require.NoError(t, testDB.Exec("TRUNCATE orders, order_items, timeline_entries").Error)
	return NewGormStore(testDB)
}

func TestGormStoreCreateAndGet(t *testing.T) {
	s := newGormStore(t)
	o := newStoredOrder(t, s)

	got, err := s.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 36.97, got.TotalAmount)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, "Springfield", got.DeliveryAddress.City)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Margherita", got.Items[0].Name)
	assert.Equal(t, "Garlic Bread", got.Items[1].Name)
	require.Len(t, got.Timeline, 1)
	assert.Equal(t, model.StatusPending, got.Timeline[0].Status)

	_, err = s.Get(context.Background(), "3f1d1c9e-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(context.Background(), "3f1d1c9e-0000-0000-0000-000000000000", func(*model.Order) error { return nil }, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGormStoreUpdateAppendsTimeline(t *testing.T) {
	s := newGormStore(t)
	o := newStoredOrder(t, s)
	ctx := context.Background()

	var hooked []model.OrderStatus
	for _, to := range []model.OrderStatus{model.StatusConfirmed, model.StatusPreparing} {
		_, err := s.Update(ctx, o.ID, func(o *model.Order) error {
			return Apply(o, to, TransitionOptions{}, time.Now())
		}, func(o *model.Order) { hooked = append(hooked, o.Status) })
		require.NoError(t, err)
	}
	assert.Equal(t, []model.OrderStatus{model.StatusConfirmed, model.StatusPreparing}, hooked)

	_, err := s.Update(ctx, o.ID, func(o *model.Order) error {
		o.Status = model.StatusDelivered
		return nil
	}, nil)
	require.ErrorIs(t, err, ErrInvalidTransition, "a status jump without a timeline entry")

	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, got.Status)
	require.Len(t, got.Timeline, 3)
	for i, want := range []model.OrderStatus{model.StatusPending, model.StatusConfirmed, model.StatusPreparing} {
		assert.Equal(t, i, got.Timeline[i].Seq)
		assert.Equal(t, want, got.Timeline[i].Status)
	}
}

// Two stores share the database but not their in-process locks, as two
// instances would; the row lock alone must serialize them.
func TestGormStoreRowLockAcrossInstances(t *testing.T) {
	s := newGormStore(t)
	other := NewGormStore(testDB)
	o := newStoredOrder(t, s)
	ctx := context.Background()

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < writers; i++ {
		store := s
		if i%2 == 1 {
			store = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, o.ID, func(o *model.Order) error {
				return Apply(o, model.StatusConfirmed, TransitionOptions{}, time.Now())
			}, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTransition)
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, writers-1, rejected)
	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Timeline, 2)
}

func TestGormStoreQueries(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()
	first := newStoredOrder(t, s)
	time.Sleep(5 * time.Millisecond)
	second := newStoredOrder(t, s)

	limit, page := 1, 2
	found, total, err := s.FindByUser(ctx, 7, model.Pagination{Limit: &limit, Page: &page})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)
	assert.Len(t, found[0].Items, 2)

	_, err = s.Update(ctx, second.ID, func(o *model.Order) error {
		return Apply(o, model.StatusConfirmed, TransitionOptions{}, time.Now())
	}, nil)
	require.NoError(t, err)

	confirmed := model.StatusConfirmed
	byStatus, err := s.FindByRestaurant(ctx, 3, &confirmed)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, second.ID, byStatus[0].ID)

	pending, err := s.FindPendingPayments(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
}
