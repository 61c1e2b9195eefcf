package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/monkelabs/monke-backend/api/middleware"
	deal "github.com/monkelabs/monke-backend/internal/deals"
	group "github.com/monkelabs/monke-backend/internal/groups"
	"github.com/monkelabs/monke-backend/internal/notifications"
	"github.com/monkelabs/monke-backend/pkg/config"
	"github.com/monkelabs/monke-backend/pkg/db/models"
	"github.com/monkelabs/monke-backend/pkg/logger"
	"github.com/monkelabs/monke-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubDealService struct{}

func (stubDealService) CreateMerchant(context.Context, deal.CreateMerchantInput) (*deal.MerchantDTO, error) {
	return &deal.MerchantDTO{ID: uuid.New()}, nil
}

func (stubDealService) GetMerchant(context.Context, uuid.UUID) (*deal.MerchantDTO, error) {
	return &deal.MerchantDTO{ID: uuid.New()}, nil
}

func (stubDealService) CreateDeal(context.Context, deal.CreateDealInput) (*deal.DealDTO, error) {
	return &deal.DealDTO{ID: uuid.New()}, nil
}

func (stubDealService) GetDeal(context.Context, uuid.UUID) (*deal.DealDTO, error) {
	return &deal.DealDTO{ID: uuid.New()}, nil
}

func (stubDealService) ListActiveDeals(context.Context, pagination.Params) (*deal.DealListResult, error) {
	return &deal.DealListResult{}, nil
}

func (stubDealService) CloseDeal(context.Context, uuid.UUID) (*deal.DealDTO, error) {
	return &deal.DealDTO{ID: uuid.New()}, nil
}

type stubGroupService struct {
	lastWallet string
}

func (s *stubGroupService) CreateGroup(_ context.Context, input group.CreateGroupInput) (*group.GroupDTO, error) {
	s.lastWallet = input.HostWallet
	return &group.GroupDTO{ID: uuid.New()}, nil
}

func (s *stubGroupService) JoinGroup(_ context.Context, input group.JoinGroupInput) (*group.GroupDTO, error) {
	s.lastWallet = input.Wallet
	return &group.GroupDTO{ID: input.GroupID}, nil
}

func (s *stubGroupService) GetGroupStatus(_ context.Context, id uuid.UUID) (*group.GroupStatusDTO, error) {
	return &group.GroupStatusDTO{Group: group.GroupDTO{ID: id}}, nil
}

func (s *stubGroupService) LockGroup(_ context.Context, id uuid.UUID, actorWallet string) (*group.SettlementDTO, error) {
	s.lastWallet = actorWallet
	return &group.SettlementDTO{GroupID: id}, nil
}

func (s *stubGroupService) CancelGroup(_ context.Context, id uuid.UUID, input group.CancelGroupInput) (*group.GroupDTO, error) {
	s.lastWallet = input.ActorWallet
	return &group.GroupDTO{ID: id}, nil
}

func (s *stubGroupService) ExpireGroup(_ context.Context, id uuid.UUID) (*group.GroupDTO, error) {
	return &group.GroupDTO{ID: id}, nil
}

func (s *stubGroupService) RecomputeProgress(context.Context, uuid.UUID) (*group.Progress, error) {
	return &group.Progress{}, nil
}

func (s *stubGroupService) ListGroupsByDeal(context.Context, uuid.UUID, pagination.Params) (*group.GroupListResult, error) {
	return &group.GroupListResult{}, nil
}

func (s *stubGroupService) ListGroupsByWallet(_ context.Context, wallet string, _ pagination.Params) (*group.GroupListResult, error) {
	s.lastWallet = wallet
	return &group.GroupListResult{}, nil
}

func (s *stubGroupService) GetRedemption(context.Context, string) (*group.RedemptionDTO, error) {
	return &group.RedemptionDTO{}, nil
}

func (s *stubGroupService) RedeemCode(_ context.Context, _ string, actorWallet string) (*group.RedemptionDTO, error) {
	s.lastWallet = actorWallet
	return &group.RedemptionDTO{}, nil
}

func (s *stubGroupService) ListRedemptionsByWallet(context.Context, string) ([]group.RedemptionDTO, error) {
	return nil, nil
}

type stubActivityService struct{}

func (stubActivityService) RecordTx(context.Context, *gorm.DB, models.ActivityEvent) error {
	return nil
}

func (stubActivityService) ListByGroup(context.Context, uuid.UUID) ([]models.ActivityEvent, error) {
	return nil, nil
}

func (stubActivityService) ListByWallet(context.Context, string, int) ([]models.ActivityEvent, error) {
	return nil, nil
}

type stubNotificationService struct{}

func (stubNotificationService) CreateTx(context.Context, *gorm.DB, models.Notification) error {
	return nil
}

func (stubNotificationService) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationService) MarkRead(context.Context, string, uuid.UUID) error {
	return nil
}

func (stubNotificationService) MarkAllRead(context.Context, string) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(cfg *config.Config, groups *stubGroupService) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "routes-test"})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		nil,
		stubDealService{},
		groups,
		stubActivityService{},
		stubNotificationService{},
	)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), &stubGroupService{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestPublicDealBrowsingNeedsNoWallet(t *testing.T) {
	router := newTestRouter(testConfig(), &stubGroupService{})

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/deals", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestPublicGroupStatusNeedsNoWallet(t *testing.T) {
	router := newTestRouter(testConfig(), &stubGroupService{})

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/groups/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestWalletRoutesRejectMissingHeader(t *testing.T) {
	router := newTestRouter(testConfig(), &stubGroupService{})

	for _, target := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/groups/"},
		{http.MethodGet, "/api/v1/groups/mine"},
		{http.MethodPost, "/api/v1/groups/" + uuid.NewString() + "/lock"},
		{http.MethodGet, "/api/v1/notifications/"},
	} {
		req := httptest.NewRequest(target.method, target.path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		require.Equal(t, http.StatusUnauthorized, resp.Code, "%s %s", target.method, target.path)
	}
}

func TestWalletHeaderReachesService(t *testing.T) {
	groups := &stubGroupService{}
	router := newTestRouter(testConfig(), groups)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/"+uuid.NewString()+"/lock", nil)
	req.Header.Set(middleware.WalletHeader, "0xwallet")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "0xwallet", groups.lastWallet)

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data)
}

func TestMyGroupsUsesWalletFromHeader(t *testing.T) {
	groups := &stubGroupService{}
	router := newTestRouter(testConfig(), groups)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/mine", nil)
	req.Header.Set(middleware.WalletHeader, "0xmember")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "0xmember", groups.lastWallet)
}
