package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/staffledger/internal/chain"
	"github.com/mmeshcher/staffledger/internal/ledger"
	"github.com/mmeshcher/staffledger/internal/middleware"
	"github.com/mmeshcher/staffledger/internal/model"
	"github.com/mmeshcher/staffledger/internal/repository"
	"github.com/mmeshcher/staffledger/internal/service"
)

type stubService struct {
	pingErr error

	gotCaller  model.Principal
	gotTarget  model.Principal
	gotAmount  int64
	gotIndex   int64
	gotAction  model.Action
	gotMetrics model.Metrics
	gotStatus  model.PerformanceStatus

	role    model.Role
	roleErr error

	authorized bool

	deposit    model.DepositRecord
	depositErr error

	balance    int64
	balanceErr error

	reward    int64
	rewardErr error

	withdrawErr error

	blocks int64
	info   model.WithdrawalInfo

	perf    model.PerformanceRecord
	perfErr error

	snapshot    model.PerformanceSnapshot
	snapshotErr error
}

func (s *stubService) Ping(ctx context.Context) error { return s.pingErr }

func (s *stubService) SetRole(ctx context.Context, caller, target model.Principal, role string) (model.Role, error) {
	s.gotCaller, s.gotTarget = caller, target
	return s.role, s.roleErr
}

func (s *stubService) GetRole(ctx context.Context, p model.Principal) (model.Role, error) {
	s.gotTarget = p
	return s.role, s.roleErr
}

func (s *stubService) IsAuthorized(ctx context.Context, p model.Principal, action model.Action) (bool, error) {
	s.gotTarget, s.gotAction = p, action
	return s.authorized, s.roleErr
}

func (s *stubService) DepositLiquidity(ctx context.Context, caller, account model.Principal, amount int64) (model.DepositRecord, error) {
	s.gotCaller, s.gotTarget, s.gotAmount = caller, account, amount
	return s.deposit, s.depositErr
}

func (s *stubService) GetLiquidity(ctx context.Context, account model.Principal) (int64, error) {
	s.gotTarget = account
	return s.balance, s.balanceErr
}

func (s *stubService) GetDepositHistory(ctx context.Context, account model.Principal, id int64) (model.DepositRecord, error) {
	s.gotTarget, s.gotIndex = account, id
	return s.deposit, s.depositErr
}

func (s *stubService) RewardStaff(ctx context.Context, caller, account model.Principal) (int64, error) {
	s.gotCaller, s.gotTarget = caller, account
	return s.reward, s.rewardErr
}

func (s *stubService) WithdrawLiquidity(ctx context.Context, account model.Principal, amount int64) error {
	s.gotTarget, s.gotAmount = account, amount
	return s.withdrawErr
}

func (s *stubService) TimeToNextWithdrawal(ctx context.Context, account model.Principal) (int64, error) {
	s.gotTarget = account
	return s.blocks, s.balanceErr
}

func (s *stubService) GetWithdrawalInfo(ctx context.Context, account model.Principal) (model.WithdrawalInfo, error) {
	s.gotTarget = account
	return s.info, s.balanceErr
}

func (s *stubService) InitializePerformance(ctx context.Context, caller, staff model.Principal) (model.PerformanceRecord, error) {
	s.gotCaller, s.gotTarget = caller, staff
	return s.perf, s.perfErr
}

func (s *stubService) UpdateMetrics(ctx context.Context, caller, staff model.Principal, m model.Metrics, status model.PerformanceStatus) (model.PerformanceRecord, error) {
	s.gotCaller, s.gotTarget, s.gotMetrics, s.gotStatus = caller, staff, m, status
	return s.perf, s.perfErr
}

func (s *stubService) GetPerformance(ctx context.Context, staff model.Principal) (model.PerformanceRecord, error) {
	s.gotTarget = staff
	return s.perf, s.perfErr
}

func (s *stubService) GetPerformanceHistory(ctx context.Context, staff model.Principal, index int64) (model.PerformanceSnapshot, error) {
	s.gotTarget, s.gotIndex = staff, index
	return s.snapshot, s.snapshotErr
}

func (s *stubService) DeactivateStaff(ctx context.Context, caller, staff model.Principal) (model.PerformanceRecord, error) {
	s.gotCaller, s.gotTarget = caller, staff
	return s.perf, s.perfErr
}

const testSecret = "test-secret"

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware(testSecret)

	return NewHandler(svc, logger, auth, nil)
}

func do(t *testing.T, h *Handler, method, target string, caller model.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+h.authMiddleware.Sign(caller))
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) resultResponse {
	t.Helper()

	var resp resultResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestDeposit_Success(t *testing.T) {
	svc := &stubService{deposit: model.DepositRecord{ID: 1, Amount: 1000}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/liquidity/deposit", "admin1", depositRequest{Account: "user1", Amount: 1000})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp depositResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Message != "Liquidity deposited successfully." || resp.DepositID != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if svc.gotCaller != "admin1" || svc.gotTarget != "user1" || svc.gotAmount != 1000 {
		t.Fatalf("service got caller=%s target=%s amount=%d", svc.gotCaller, svc.gotTarget, svc.gotAmount)
	}
}

func TestDeposit_RequiresToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodPost, "/api/liquidity/deposit", "", depositRequest{Account: "user1", Amount: 1000})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestDeposit_BadJSON(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/liquidity/deposit", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.Sign("admin1"))
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeposit_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"unauthorized", ledger.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
		{"invalid amount", ledger.ErrInvalidAmount, http.StatusUnprocessableEntity, "InvalidAmount"},
		{"invalid principal", ledger.ErrInvalidPrincipal, http.StatusUnprocessableEntity, "InvalidPrincipal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{depositErr: tt.err})

			rec := do(t, h, http.MethodPost, "/api/liquidity/deposit", "user1", depositRequest{Account: "user1", Amount: 50})

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			resp := decodeResult(t, rec)
			if resp.Success || resp.Reason != tt.reason {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestDeposit_InternalError(t *testing.T) {
	h := newTestHandler(t, &stubService{depositErr: errors.New("connection reset")})

	rec := do(t, h, http.MethodPost, "/api/liquidity/deposit", "admin1", depositRequest{Account: "user1", Amount: 1000})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if resp := decodeResult(t, rec); strings.Contains(resp.Message, "connection reset") {
		t.Fatalf("internal error leaked: %+v", resp)
	}
}

func TestReward_NoLiquidity(t *testing.T) {
	h := newTestHandler(t, &stubService{rewardErr: ledger.ErrNoLiquidity})

	rec := do(t, h, http.MethodPost, "/api/liquidity/user2/reward", "admin1", nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	resp := decodeResult(t, rec)
	if resp.Message != "Staff has no liquidity to reward." {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestReward_Success(t *testing.T) {
	svc := &stubService{reward: 5100}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/liquidity/user1/reward", "admin1", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp rewardResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Reward != 5100 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if svc.gotTarget != "user1" {
		t.Fatalf("target = %s", svc.gotTarget)
	}
}

func TestWithdraw_UsesCallerAccount(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/liquidity/withdraw", "user1", withdrawRequest{Amount: 500})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp withdrawResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "success" || resp.Message != "Liquidity withdrawn successfully." {
		t.Fatalf("unexpected response %+v", resp)
	}
	if svc.gotTarget != "user1" || svc.gotAmount != 500 {
		t.Fatalf("service got account=%s amount=%d", svc.gotTarget, svc.gotAmount)
	}
}

func TestWithdraw_ConditionsNotMet(t *testing.T) {
	h := newTestHandler(t, &stubService{withdrawErr: ledger.ErrWithdrawalConditionsNotMet})

	rec := do(t, h, http.MethodPost, "/api/liquidity/withdraw", "user1", withdrawRequest{Amount: 50})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if resp := decodeResult(t, rec); resp.Error != "Withdrawal conditions not met" {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestWithdraw_CooldownActive(t *testing.T) {
	h := newTestHandler(t, &stubService{withdrawErr: ledger.ErrCooldownActive})

	rec := do(t, h, http.MethodPost, "/api/liquidity/withdraw", "user1", withdrawRequest{Amount: 500})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestGetLiquidity_Public(t *testing.T) {
	svc := &stubService{balance: 3000}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/liquidity/user1", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp liquidityResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Account != "user1" || resp.Balance != 3000 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetDepositHistory(t *testing.T) {
	svc := &stubService{deposit: model.DepositRecord{ID: 2, Amount: 500, DepositedBy: "admin1", Height: 10}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/liquidity/user1/deposits/2", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.gotIndex != 2 {
		t.Fatalf("id = %d, want 2", svc.gotIndex)
	}

	var got model.DepositRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != svc.deposit {
		t.Fatalf("got %+v, want %+v", got, svc.deposit)
	}
}

func TestGetDepositHistory_BadID(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodGet, "/api/liquidity/user1/deposits/abc", "", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetDepositHistory_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{depositErr: ledger.ErrNotFound})

	rec := do(t, h, http.MethodGet, "/api/liquidity/user1/deposits/7", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestTimeToNextWithdrawal(t *testing.T) {
	h := newTestHandler(t, &stubService{blocks: 42})

	rec := do(t, h, http.MethodGet, "/api/liquidity/user1/cooldown", "", nil)

	var resp cooldownResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BlocksRemaining != 42 {
		t.Fatalf("blocksRemaining = %d, want 42", resp.BlocksRemaining)
	}
}

func TestGetWithdrawalInfo(t *testing.T) {
	want := model.WithdrawalInfo{AvailableBalance: 3000, MinWithdrawal: 100, MaxWithdrawal: 3000}
	h := newTestHandler(t, &stubService{info: want})

	rec := do(t, h, http.MethodGet, "/api/liquidity/user1/withdrawal-info", "", nil)

	var got model.WithdrawalInfo
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSetRole(t *testing.T) {
	svc := &stubService{role: model.RoleManager}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/roles", "admin1", setRoleRequest{Target: "user1", Role: "manager"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.gotCaller != "admin1" || svc.gotTarget != "user1" {
		t.Fatalf("service got caller=%s target=%s", svc.gotCaller, svc.gotTarget)
	}
}

func TestSetRole_InvalidRole(t *testing.T) {
	h := newTestHandler(t, &stubService{roleErr: ledger.ErrInvalidRole})

	rec := do(t, h, http.MethodPost, "/api/roles", "admin1", setRoleRequest{Target: "user1", Role: "superuser"})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestIsAuthorized_ActionQuery(t *testing.T) {
	svc := &stubService{authorized: true}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/authorization/user1?action=reward", "", nil)

	var resp authorizationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Authorized || svc.gotAction != model.ActionReward {
		t.Fatalf("unexpected response %+v (action %s)", resp, svc.gotAction)
	}

	rec = do(t, h, http.MethodGet, "/api/authorization/user1?action=fly", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestInitializePerformance_AlreadyInitialized(t *testing.T) {
	h := newTestHandler(t, &stubService{perfErr: ledger.ErrAlreadyInitialized})

	rec := do(t, h, http.MethodPost, "/api/performance/user1", "hr1", nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestUpdateMetrics_DecodesMetricsAndStatus(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body := map[string]any{
		"productivity": 80, "productKnowledge": 70, "qualityOfService": 90, "adherenceToSchedule": 100,
		"discipline": 60, "taskCompletion": 0, "goalAchievement": 85, "teamPlayer": 75,
		"status": "inactive",
	}
	rec := do(t, h, http.MethodPut, "/api/performance/user1", "hr1", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.gotMetrics.Productivity != 80 || svc.gotMetrics.TeamPlayer != 75 {
		t.Fatalf("metrics = %+v", svc.gotMetrics)
	}
	if svc.gotStatus != model.StatusInactive {
		t.Fatalf("status = %s", svc.gotStatus)
	}
}

func TestUpdateMetrics_RejectsPartialBody(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPut, "/api/performance/s1", "hr1", map[string]any{"productivity": 90})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if svc.gotTarget != "" || svc.gotMetrics != (model.Metrics{}) {
		t.Fatalf("service called with target=%s metrics=%+v", svc.gotTarget, svc.gotMetrics)
	}
}

func TestUpdateMetrics_PartialBodyKeepsStoredScores(t *testing.T) {
	ctx := context.Background()
	limits := ledger.DefaultLimits()
	svc := service.NewService(repository.NewMemoryRepository(limits.SnapshotRetention), chain.Fixed(10), limits, zap.NewNop())
	if err := svc.BootstrapAdmins(ctx, []model.Principal{"admin1"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := svc.InitializePerformance(ctx, "admin1", "s1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	all80 := model.Metrics{Productivity: 80, ProductKnowledge: 80, QualityOfService: 80, AdherenceToSchedule: 80, Discipline: 80, TaskCompletion: 80, GoalAchievement: 80, TeamPlayer: 80}
	if _, err := svc.UpdateMetrics(ctx, "admin1", "s1", all80, model.StatusActive); err != nil {
		t.Fatalf("update: %v", err)
	}

	h := newTestHandler(t, svc)
	rec := do(t, h, http.MethodPut, "/api/performance/s1", "admin1", map[string]any{"productivity": 90})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	got, err := svc.GetPerformance(ctx, "s1")
	if err != nil {
		t.Fatalf("get performance: %v", err)
	}
	if got.Metrics != all80 || got.SnapshotCount != 2 {
		t.Fatalf("record changed: %+v", got)
	}
}

func TestUpdateMetrics_UnknownStatus(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body := map[string]any{
		"productivity": 1, "productKnowledge": 1, "qualityOfService": 1, "adherenceToSchedule": 1,
		"discipline": 1, "taskCompletion": 1, "goalAchievement": 1, "teamPlayer": 1,
		"status": "asleep",
	}
	rec := do(t, h, http.MethodPut, "/api/performance/user1", "hr1", body)

	if rec.Code == http.StatusOK {
		t.Fatalf("unknown status accepted")
	}
}

func TestGetPerformanceHistory(t *testing.T) {
	svc := &stubService{snapshot: model.PerformanceSnapshot{Index: 3, Status: model.StatusActive}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/performance/user1/history/3", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.gotIndex != 3 {
		t.Fatalf("index = %d, want 3", svc.gotIndex)
	}
}

func TestDeactivateStaff_Forbidden(t *testing.T) {
	h := newTestHandler(t, &stubService{perfErr: ledger.ErrUnauthorized})

	rec := do(t, h, http.MethodPost, "/api/performance/user1/deactivate", "user2", nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	h = newTestHandler(t, &stubService{pingErr: errors.New("down")})
	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
