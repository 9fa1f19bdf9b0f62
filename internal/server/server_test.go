package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/promocast/promocast/internal/admin"
	auditrepo "github.com/promocast/promocast/internal/audit/repository"
	auditservice "github.com/promocast/promocast/internal/audit/service"
	campaignrepo "github.com/promocast/promocast/internal/campaign/repository"
	campaignservice "github.com/promocast/promocast/internal/campaign/service"
	"github.com/promocast/promocast/internal/clock"
	"github.com/promocast/promocast/internal/config"
	"github.com/promocast/promocast/internal/notify"
	orderrepo "github.com/promocast/promocast/internal/order/repository"
	orderservice "github.com/promocast/promocast/internal/order/service"
	recdomain "github.com/promocast/promocast/internal/reconcile/domain"
	reconcilerepo "github.com/promocast/promocast/internal/reconcile/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type nopNotifier struct{}

func (nopNotifier) CampaignProvisioned(context.Context, notify.ProvisioningEvent) {}

type serverEnv struct {
	engine        *gin.Engine
	db            *gorm.DB
	fake          *clock.FakeClock
	reconcileRepo recdomain.Repository
}

func setupServer(t *testing.T) *serverEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareServerSchema(t, db)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{
		HTTPPort:           "8080",
		BaseRateNano:       290_000_000,
		MaxDiscountBps:     2500,
		AmountToleranceBps: 200,
		OrderTTL:           20 * time.Minute,
		ReceivingAddresses: []string{"addr-receiving"},
	}
	orderRepository := orderrepo.Provide()
	orderSvc := orderservice.NewService(orderservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Cfg: cfg, Repo: orderRepository,
	})
	campaignSvc := campaignservice.NewService(campaignservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: campaignrepo.Provide(),
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: auditrepo.Provide(),
	})
	reconcileRepository := reconcilerepo.Provide()
	adminSvc := admin.NewService(admin.Params{
		DB:            db,
		Log:           log,
		Clock:         fake,
		OrderRepo:     orderRepository,
		ReconcileRepo: reconcileRepository,
		CampaignSvc:   campaignSvc,
		AuditSvc:      auditSvc,
		Notifier:      nopNotifier{},
	})

	srv := NewServer(ServerParams{
		Gin:         NewEngine(),
		Cfg:         cfg,
		Log:         log,
		OrderSvc:    orderSvc,
		CampaignSvc: campaignSvc,
		AdminSvc:    adminSvc,
		AuditSvc:    auditSvc,
	})

	return &serverEnv{
		engine:        srv.Engine(),
		db:            db,
		fake:          fake,
		reconcileRepo: reconcileRepository,
	}
}

func prepareServerSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE orders (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		reference_code TEXT NOT NULL,
		claimed_payer_addr TEXT,
		duration_days INTEGER NOT NULL,
		channel_ids JSON NOT NULL,
		posts_per_day INTEGER NOT NULL,
		discount_bps BIGINT NOT NULL,
		expected_amount_nano BIGINT NOT NULL,
		status TEXT NOT NULL,
		matched_tx_hash TEXT,
		matched_at DATETIME,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX idx_orders_reference_code_pending
		ON orders (reference_code) WHERE status = 'pending'`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE observed_transactions (
		tx_hash TEXT PRIMARY KEY,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		amount_nano BIGINT NOT NULL,
		memo TEXT,
		observed_at DATETIME NOT NULL,
		processed BOOLEAN NOT NULL,
		outcome TEXT,
		processed_at DATETIME
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE campaigns (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE scheduled_posts (
		id BIGINT PRIMARY KEY,
		campaign_id BIGINT NOT NULL,
		channel_id BIGINT NOT NULL,
		day_index INTEGER NOT NULL,
		slot_index INTEGER NOT NULL,
		slot_time TEXT NOT NULL,
		publish_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE audit_logs (
		id BIGINT PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata JSON,
		created_at DATETIME NOT NULL
	)`).Error)
}

func (e *serverEnv) do(method, path, body, remoteAddr string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *serverEnv) createOrder(t *testing.T) orderResponse {
	t.Helper()
	w := e.do(http.MethodPost, "/v1/orders", `{"user_id":42,"duration_days":7,"channel_ids":[100,200]}`, "198.51.100.7:4000")
	require.Equal(t, http.StatusCreated, w.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateAndFetchOrder(t *testing.T) {
	env := setupServer(t)

	created := env.createOrder(t)
	require.NotEmpty(t, created.ReferenceCode)
	require.Equal(t, "addr-receiving", created.ReceivingAddress)
	require.Equal(t, int64(11_497_920_000), created.ExpectedAmountNano)
	require.Equal(t, "pending", created.Status)

	w := env.do(http.MethodGet, "/v1/orders/"+created.ReferenceCode, "", "198.51.100.7:4000")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/v1/orders/ZZ0000", "", "198.51.100.7:4000")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrderRejectsBadRequest(t *testing.T) {
	env := setupServer(t)

	w := env.do(http.MethodPost, "/v1/orders", `{"user_id":42}`, "198.51.100.7:4000")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrderConflictOnRepeat(t *testing.T) {
	env := setupServer(t)
	created := env.createOrder(t)

	w := env.do(http.MethodPost, "/v1/orders/"+created.ReferenceCode+"/cancel", "", "198.51.100.7:4000")
	require.Equal(t, http.StatusOK, w.Code)

	// The cancelled order is still the latest holder of its code.
	w = env.do(http.MethodPost, "/v1/orders/"+created.ReferenceCode+"/cancel", "", "198.51.100.7:4000")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminRoutesRejectRemoteClients(t *testing.T) {
	env := setupServer(t)
	created := env.createOrder(t)

	w := env.do(http.MethodPost, "/admin/orders/"+created.ID+"/force-match",
		`{"tx_hash":"tx-1","operator":"ops@example.com"}`, "203.0.113.9:4000")
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminForceMatchFlow(t *testing.T) {
	env := setupServer(t)
	created := env.createOrder(t)

	inserted, err := env.reconcileRepo.Insert(context.Background(), env.db, &recdomain.ObservedTransaction{
		TxHash:      "tx-manual",
		FromAddress: "payer",
		ToAddress:   "addr-receiving",
		AmountNano:  1,
		Memo:        "GARBLED",
		ObservedAt:  env.fake.Now(),
	})
	require.NoError(t, err)
	require.True(t, inserted)

	w := env.do(http.MethodPost, "/admin/orders/"+created.ID+"/force-match",
		`{"tx_hash":"tx-manual","operator":"ops@example.com"}`, "127.0.0.1:4000")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/v1/orders/"+created.ReferenceCode+"/campaign", "", "198.51.100.7:4000")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/admin/audit-logs?action=order.force_match", "", "127.0.0.1:4000")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "order.force_match")
}

func TestRequestIDPropagates(t *testing.T) {
	env := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-abc", w.Header().Get("X-Request-ID"))
}
