package transfer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/stock"
	"github.com/paperline-erp/paperline-erp/internal/warehouse"
)

type memoryRepo struct {
	mu           sync.Mutex
	transfers    map[int64]WeightTransfer
	approvals    map[int64]Approval
	stocks       map[string]stock.Stock
	entries      []shared.AuditEntry
	nextTransfer int64
	nextApproval int64
	nextMovement int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		transfers: make(map[int64]WeightTransfer),
		approvals: make(map[int64]Approval),
		stocks:    make(map[string]stock.Stock),
	}
}

func stockKey(productID, warehouseID int64) string {
	return fmt.Sprintf("%d:%d", productID, warehouseID)
}

// WithTx serialises callers the way the row lock on the transfer does.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetTransfer(ctx context.Context, id int64) (WeightTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.transfers[id]; ok {
		return t, nil
	}
	return WeightTransfer{}, ErrNotFound
}

func (r *memoryRepo) ListByOrder(ctx context.Context, orderID int64) ([]WeightTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []WeightTransfer
	for _, t := range r.transfers {
		if t.OrderID == orderID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]WeightTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []WeightTransfer
	for _, t := range r.transfers {
		if t.GroupID == groupID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListApprovals(ctx context.Context, transferID int64) ([]Approval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approvalsOf(transferID), nil
}

func (r *memoryRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]WeightTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []WeightTransfer
	for _, t := range r.transfers {
		if t.Status == StatusPending && t.CreatedAt.Before(olderThan) {
			result = append(result, t)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *memoryRepo) approvalsOf(transferID int64) []Approval {
	var result []Approval
	for _, a := range r.approvals {
		if a.TransferID == transferID {
			result = append(result, a)
		}
	}
	return result
}

func (tx *memoryTx) InsertTransfer(ctx context.Context, t WeightTransfer) (int64, error) {
	tx.repo.nextTransfer++
	t.ID = tx.repo.nextTransfer
	tx.repo.transfers[t.ID] = t
	return t.ID, nil
}

func (tx *memoryTx) GetTransferForUpdate(ctx context.Context, id int64) (WeightTransfer, error) {
	if t, ok := tx.repo.transfers[id]; ok {
		return t, nil
	}
	return WeightTransfer{}, ErrNotFound
}

func (tx *memoryTx) UpdateTransferStatus(ctx context.Context, id int64, status Status, approvedBy int64, transferredAt time.Time) error {
	t, ok := tx.repo.transfers[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	t.ApprovedBy = approvedBy
	if !transferredAt.IsZero() {
		t.TransferredAt = transferredAt
	}
	tx.repo.transfers[id] = t
	return nil
}

func (tx *memoryTx) InsertApproval(ctx context.Context, a Approval) (int64, error) {
	tx.repo.nextApproval++
	a.ID = tx.repo.nextApproval
	tx.repo.approvals[a.ID] = a
	return a.ID, nil
}

func (tx *memoryTx) ListApprovalsForUpdate(ctx context.Context, transferID int64) ([]Approval, error) {
	return tx.repo.approvalsOf(transferID), nil
}

// DecideApproval mirrors the guarded UPDATE: deciding a slot that is no
// longer pending affects zero rows and surfaces ErrWrongSequence.
func (tx *memoryTx) DecideApproval(ctx context.Context, id int64, status ApprovalStatus, decidedBy int64, note string, at time.Time) error {
	a, ok := tx.repo.approvals[id]
	if !ok || a.Status != ApprovalPending {
		return fmt.Errorf("%w: approval %d already decided", ErrWrongSequence, id)
	}
	a.Status = status
	a.DecidedBy = decidedBy
	a.Note = note
	a.DecidedAt = at
	tx.repo.approvals[id] = a
	return nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, productID, warehouseID int64) (stock.Stock, error) {
	if s, ok := tx.repo.stocks[stockKey(productID, warehouseID)]; ok {
		return s, nil
	}
	return stock.Stock{}, stock.ErrNotFound
}

func (tx *memoryTx) UpsertStock(ctx context.Context, s stock.Stock) error {
	tx.repo.stocks[stockKey(s.ProductID, s.WarehouseID)] = s
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m stock.Movement) (int64, error) {
	tx.repo.nextMovement++
	return tx.repo.nextMovement, nil
}

func (tx *memoryTx) InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error {
	tx.repo.entries = append(tx.repo.entries, entry)
	return nil
}

// stockView adapts the memory repo to the stock repository port so the real
// ledger can run against the same stocks map.
type stockView struct {
	repo *memoryRepo
}

func (v stockView) WithTx(ctx context.Context, fn func(context.Context, stock.TxRepository) error) error {
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	return fn(ctx, &memoryTx{repo: v.repo})
}

func (v stockView) GetStock(ctx context.Context, productID, warehouseID int64) (stock.Stock, error) {
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	if s, ok := v.repo.stocks[stockKey(productID, warehouseID)]; ok {
		return s, nil
	}
	return stock.Stock{}, stock.ErrNotFound
}

func (v stockView) ListByWarehouse(ctx context.Context, warehouseID int64) ([]stock.Stock, error) {
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	var result []stock.Stock
	for _, s := range v.repo.stocks {
		if s.WarehouseID == warehouseID {
			result = append(result, s)
		}
	}
	return result, nil
}

type fakeWarehouses struct {
	byID map[int64]warehouse.Warehouse
}

func (f fakeWarehouses) Get(ctx context.Context, id int64) (warehouse.Warehouse, error) {
	if w, ok := f.byID[id]; ok {
		return w, nil
	}
	return warehouse.Warehouse{}, warehouse.ErrNotFound
}

type fakeIdentity struct {
	denied map[int64]bool
}

func (f fakeIdentity) CanApprove(ctx context.Context, userID, warehouseID int64, level int) (bool, error) {
	return !f.denied[userID], nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]bool)}
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

const (
	whMain    int64 = 1
	whSorting int64 = 2
	whScrap   int64 = 3
	whClosed  int64 = 4
)

var (
	requester = shared.Actor{ID: 7, Name: "operator"}
	approver1 = shared.Actor{ID: 10, Name: "supervisor"}
	approver2 = shared.Actor{ID: 11, Name: "head"}
)

func testWarehouses() fakeWarehouses {
	return fakeWarehouses{byID: map[int64]warehouse.Warehouse{
		whMain: {
			ID: whMain, Code: "WH-MAIN", Kind: warehouse.KindMain,
			AcceptsTransfers: true, RequiresApproval: true,
		},
		whSorting: {
			ID: whSorting, Code: "WH-SORT", Kind: warehouse.KindSorting,
			Roles:            []warehouse.Role{warehouse.RoleReceiveTransfers, warehouse.RoleSortingStation},
			AcceptsTransfers: true, RequiresApproval: true,
		},
		whScrap: {
			ID: whScrap, Code: "WH-SCRAP", Kind: warehouse.KindScrap,
			Roles:            []warehouse.Role{warehouse.RoleScrapSink},
			AcceptsTransfers: true,
		},
		whClosed: {
			ID: whClosed, Code: "WH-CLOSED", Kind: warehouse.KindMain,
			AcceptsTransfers: false, RequiresApproval: true,
		},
	}}
}

func newTestService(t *testing.T, identity IdentityPort) (*Service, *memoryRepo, *fakeIdempotency) {
	t.Helper()
	repo := newMemoryRepo()
	ledger := stock.NewLedger(stockView{repo: repo}, nil, nil, nil)
	if identity == nil {
		identity = fakeIdentity{}
	}
	idem := newFakeIdempotency()
	svc := NewService(repo, ledger, identity, testWarehouses(), idem, nil, nil, nil, nil)
	return svc, repo, idem
}

func seedStock(repo *memoryRepo, productID, warehouseID int64, kg float64) {
	repo.stocks[stockKey(productID, warehouseID)] = stock.Stock{
		ProductID: productID, WarehouseID: warehouseID, QuantityKg: kg,
	}
}

func stageTransferInput(weightKg float64) CreateInput {
	return CreateInput{
		OrderID:         100,
		ProductID:       1,
		FromStage:       orders.StageSorting,
		ToStage:         orders.StageCutting,
		WeightKg:        weightKg,
		Type:            TypeStageTransfer,
		Category:        CategorySortedMaterial,
		SourceWarehouse: whMain,
		DestWarehouse:   whSorting,
	}
}

func buildApprovedTransfer(t *testing.T, svc *Service, repo *memoryRepo, weightKg float64) WeightTransfer {
	t.Helper()
	ctx := context.Background()
	created, err := svc.Create(ctx, requester, stageTransferInput(weightKg))
	require.NoError(t, err)

	gates, err := svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver1.ID, WarehouseID: whMain, Level: 1},
		{ApproverID: approver2.ID, WarehouseID: whSorting, Level: 2},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, approver1, created.ID, gates[0].ID, "checked"))
	require.NoError(t, svc.Approve(ctx, approver2, created.ID, gates[1].ID, ""))

	approved, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	return approved
}

func auditEvents(repo *memoryRepo) []string {
	events := make([]string, 0, len(repo.entries))
	for _, e := range repo.entries {
		events = append(events, e.EventType)
	}
	return events
}

func TestTransferLifecycle(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 1000)

	created, err := svc.Create(ctx, requester, stageTransferInput(150))
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)
	require.NotEqual(t, uuid.Nil, created.GroupID)

	gates, err := svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver1.ID, WarehouseID: whMain, Level: 1},
		{ApproverID: approver2.ID, WarehouseID: whSorting, Level: 2},
	})
	require.NoError(t, err)
	require.Len(t, gates, 2)
	require.False(t, gates[0].IsFinal)
	require.True(t, gates[1].IsFinal)

	require.NoError(t, svc.Approve(ctx, approver1, created.ID, gates[0].ID, "weights verified"))
	mid, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, mid.Status, "non-final gate must not flip the transfer")

	require.NoError(t, svc.Approve(ctx, approver2, created.ID, gates[1].ID, ""))
	approved, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, approver2.ID, approved.ApprovedBy)

	result, err := svc.Execute(ctx, requester, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Transfer.Status)
	require.False(t, result.Transfer.TransferredAt.IsZero())
	require.InDelta(t, 850, result.SourceStock.QuantityKg, 0.0001)
	require.InDelta(t, 150, result.DestStock.QuantityKg, 0.0001)

	events := auditEvents(repo)
	require.Contains(t, events, "transfer.created")
	require.Contains(t, events, "transfer.approval_requested")
	require.Contains(t, events, "transfer.approval_granted")
	require.Contains(t, events, "transfer.approved")
	require.Contains(t, events, "transfer.executed")

	var executed shared.AuditEntry
	for _, e := range repo.entries {
		if e.EventType == "transfer.executed" {
			executed = e
		}
	}
	require.InDelta(t, 1000.0, executed.OldValues["source_quantity_kg"].(float64), 0.0001)
	require.InDelta(t, 850.0, executed.NewValues["source_quantity_kg"].(float64), 0.0001)
	require.InDelta(t, 0.0, executed.OldValues["dest_quantity_kg"].(float64), 0.0001)
	require.InDelta(t, 150.0, executed.NewValues["dest_quantity_kg"].(float64), 0.0001)
}

func TestExecuteIsAtMostOnce(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	approved := buildApprovedTransfer(t, svc, repo, 200)

	_, err := svc.Execute(ctx, requester, approved.ID)
	require.NoError(t, err)

	_, err = svc.Execute(ctx, requester, approved.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	s := repo.stocks[stockKey(1, whMain)]
	require.InDelta(t, 300, s.QuantityKg, 0.0001, "weight must move exactly once")
}

func TestExecuteRequiresApprovedStatus(t *testing.T) {
	svc, repo, idem := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)

	_, err = svc.Execute(ctx, requester, created.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	// The failed attempt released its claim, so execution after approval works.
	require.Empty(t, idem.keys)
}

func TestExecuteRetryAfterShortfall(t *testing.T) {
	svc, repo, idem := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	approved := buildApprovedTransfer(t, svc, repo, 200)

	// Stock drained between approval and execution.
	seedStock(repo, 1, whMain, 50)

	_, err := svc.Execute(ctx, requester, approved.ID)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	after, err := svc.Get(ctx, approved.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, after.Status, "failed execution must not consume the approval")
	require.InDelta(t, 50, repo.stocks[stockKey(1, whMain)].QuantityKg, 0.0001)
	require.Empty(t, idem.keys, "failed execution must release its idempotency claim")

	seedStock(repo, 1, whMain, 500)
	result, err := svc.Execute(ctx, requester, approved.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Transfer.Status)
	require.InDelta(t, 300, result.SourceStock.QuantityKg, 0.0001)
}

func TestApproveOutOfOrder(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)
	gates, err := svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver1.ID, WarehouseID: whMain, Level: 1},
		{ApproverID: approver2.ID, WarehouseID: whSorting, Level: 2},
	})
	require.NoError(t, err)

	err = svc.Approve(ctx, approver2, created.ID, gates[1].ID, "")
	require.ErrorIs(t, err, ErrWrongSequence)

	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, after.Status)
}

func TestApproveChecksAssignmentAndCapability(t *testing.T) {
	intruder := shared.Actor{ID: 99, Name: "intruder"}
	svc, repo, _ := newTestService(t, fakeIdentity{denied: map[int64]bool{approver2.ID: true}})
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)
	gates, err := svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver1.ID, WarehouseID: whMain, Level: 1},
		{ApproverID: approver2.ID, WarehouseID: whSorting, Level: 2},
	})
	require.NoError(t, err)

	// Wrong actor for an assigned gate.
	err = svc.Approve(ctx, intruder, created.ID, gates[0].ID, "")
	require.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, svc.Approve(ctx, approver1, created.ID, gates[0].ID, ""))

	// Assigned actor without the approval capability.
	err = svc.Approve(ctx, approver2, created.ID, gates[1].ID, "")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestApprovalRaceFirstWriterWins(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)
	// Unassigned gates any authorized approver may grant.
	gates, err := svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{WarehouseID: whMain, Level: 1},
		{WarehouseID: whSorting, Level: 2},
	})
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, actor := range []shared.Actor{approver1, approver2} {
		wg.Add(1)
		go func(a shared.Actor) {
			defer wg.Done()
			errs <- svc.Approve(ctx, a, created.ID, gates[0].ID, "")
		}(actor)
	}
	wg.Wait()
	close(errs)

	var losses int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrWrongSequence)
			losses++
		}
	}
	require.Equal(t, 1, losses, "exactly one approver must lose the race")

	approvals, err := svc.ListApprovals(ctx, created.ID)
	require.NoError(t, err)
	var decided int
	for _, a := range approvals {
		if a.Status == ApprovalApproved {
			decided++
		}
	}
	require.Equal(t, 1, decided, "the gate was granted exactly once")
}

func TestRejectIsTerminal(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)
	gates, err := svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver1.ID, WarehouseID: whMain, Level: 1},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, approver1, created.ID, gates[0].ID, "wrong weights"))

	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, after.Status)

	require.ErrorIs(t, svc.Approve(ctx, approver1, created.ID, gates[0].ID, ""), ErrInvalidState)
	require.ErrorIs(t, svc.Reject(ctx, approver1, created.ID, 0, "again"), ErrInvalidState)
	_, err = svc.Execute(ctx, requester, created.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	require.InDelta(t, 500, repo.stocks[stockKey(1, whMain)].QuantityKg, 0.0001, "rejected weight never moves")
}

func TestBareRejectRequiresCapability(t *testing.T) {
	intruder := shared.Actor{ID: 99, Name: "walk-in"}
	svc, repo, _ := newTestService(t, fakeIdentity{denied: map[int64]bool{intruder.ID: true, requester.ID: true}})
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)
	_, err = svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver1.ID, WarehouseID: whMain, Level: 1},
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Reject(ctx, intruder, created.ID, 0, "not mine"), ErrNotAuthorized)
	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, after.Status, "unauthorized reject must not touch the transfer")

	// An approver for the source warehouse may reject without naming a gate.
	require.NoError(t, svc.Reject(ctx, approver1, created.ID, 0, "cancelled upstream"))
}

func TestRequesterMayWithdrawOwnTransfer(t *testing.T) {
	// The requester holds no approval grant at all.
	svc, repo, _ := newTestService(t, fakeIdentity{denied: map[int64]bool{requester.ID: true}})
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, requester, created.ID, 0, "entered twice"))
	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, after.Status)
}

type fakeCatalog struct {
	frozen map[int64]bool
}

func (f *fakeCatalog) Freeze(ctx context.Context, productID int64) error {
	f.frozen[productID] = true
	return nil
}

func TestExecuteFreezesReferencedSpec(t *testing.T) {
	repo := newMemoryRepo()
	ledger := stock.NewLedger(stockView{repo: repo}, nil, nil, nil)
	cat := &fakeCatalog{frozen: map[int64]bool{}}
	svc := NewService(repo, ledger, fakeIdentity{}, testWarehouses(), newFakeIdempotency(), nil, nil, cat, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	approved := buildApprovedTransfer(t, svc, repo, 150)
	require.False(t, cat.frozen[1], "approval alone must not freeze the spec")

	_, err := svc.Execute(ctx, requester, approved.ID)
	require.NoError(t, err)
	require.True(t, cat.frozen[1], "a completed transfer locks the spec it references")
}

func TestAutoApprovedWasteRoute(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whSorting, 80)

	input := CreateInput{
		OrderID:         100,
		ProductID:       1,
		FromStage:       orders.StageSorting,
		ToStage:         orders.StageSorting,
		WeightKg:        25,
		Type:            TypeWaste,
		Category:        CategoryWaste,
		SourceWarehouse: whSorting,
		DestWarehouse:   whScrap,
	}
	created, err := svc.Create(ctx, requester, input)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, created.Status, "waste to a scrap sink skips the chain")

	approvals, err := svc.ListApprovals(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	require.Equal(t, ApprovalApproved, approvals[0].Status)
	require.True(t, approvals[0].IsFinal)

	require.Contains(t, auditEvents(repo), "transfer.auto_approved")

	result, err := svc.Execute(ctx, requester, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 25, result.DestStock.QuantityKg, 0.0001)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 100)

	input := stageTransferInput(50)
	input.DestWarehouse = input.SourceWarehouse
	_, err := svc.Create(ctx, requester, input)
	require.ErrorIs(t, err, ErrValidation)

	input = stageTransferInput(50)
	input.DestWarehouse = whClosed
	_, err = svc.Create(ctx, requester, input)
	require.ErrorIs(t, err, ErrDestinationClosed)

	_, err = svc.Create(ctx, requester, stageTransferInput(150))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	require.Empty(t, repo.transfers, "nothing may persist on a rejected create")
}

func TestCreateGroupSharesOneGroupID(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whSorting, 200)

	sorted := CreateInput{
		OrderID: 100, ProductID: 1,
		FromStage: orders.StageSorting, ToStage: orders.StageCutting,
		WeightKg: 120, Type: TypeStageTransfer, Category: CategorySortedMaterial,
		SourceWarehouse: whSorting, DestWarehouse: whMain,
	}
	waste := CreateInput{
		OrderID: 100, ProductID: 1,
		FromStage: orders.StageSorting, ToStage: orders.StageSorting,
		WeightKg: 30, Type: TypeWaste, Category: CategoryWaste,
		SourceWarehouse: whSorting, DestWarehouse: whScrap,
	}
	cohort, err := svc.CreateGroup(ctx, requester, []CreateInput{sorted, waste})
	require.NoError(t, err)
	require.Len(t, cohort, 2)
	require.Equal(t, cohort[0].GroupID, cohort[1].GroupID)
	require.Equal(t, StatusApproved, cohort[1].Status, "waste leg is auto-approved")

	listed, err := svc.ListByGroup(ctx, cohort[0].GroupID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestApprovalChainCannotBeRebuilt(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	seedStock(repo, 1, whMain, 500)

	created, err := svc.Create(ctx, requester, stageTransferInput(100))
	require.NoError(t, err)
	_, err = svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver1.ID, WarehouseID: whMain, Level: 1},
	})
	require.NoError(t, err)

	_, err = svc.RequestApprovals(ctx, requester, created.ID, []ChainGateInput{
		{ApproverID: approver2.ID, WarehouseID: whMain, Level: 1},
	})
	require.ErrorIs(t, err, ErrInvalidState)
}
