package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

const subscriptionsQuery = `SELECT \* FROM "push_subscriptions" WHERE identity = \$1`

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{}, zap.NewNop())

	wp.Dispatch(Banner{Identity: "IT-101", Message: "offline"})

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "IT-101", job.Identity)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchAfterStop(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			wp.Dispatch(Banner{Identity: "IT-101"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked after the pool stopped")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends the banner to every subscriber of the identity", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(2)

		var mu sync.Mutex
		var endpoints []string
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var got Banner
				assert.NoError(t, json.Unmarshal(payload, &got))
				assert.Equal(t, Banner{Identity: "IT-101", Message: "Не удалось обновить расписание"}, got)
				mu.Lock()
				endpoints = append(endpoints, sub.Endpoint)
				mu.Unlock()
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("IT-101").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "identity", "created_at"}).
				AddRow("https://example.com/a", "p1", "a1", "IT-101", time.Now()).
				AddRow("https://example.com/b", "p2", "a2", "IT-101", time.Now()))

		wp.Dispatch(Banner{Identity: "IT-101", Message: "Не удалось обновить расписание"})
		wg.Wait()
		assert.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, endpoints)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("ИТ-202").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "identity", "created_at"}).
				AddRow("https://example.com/expired", "p", "a", "ИТ-202", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(Banner{Identity: "ИТ-202", Message: "offline"})

		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})

	t.Run("no subscribers sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("unexpected send")
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("Петров").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "identity", "created_at"}))

		wp.Dispatch(Banner{Identity: "Петров"})
		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})
}
