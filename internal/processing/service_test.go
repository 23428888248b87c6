package processing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/transfer"
)

type memoryOrders struct {
	materials map[int64]orders.OrderMaterial
	fail      error
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{materials: map[int64]orders.OrderMaterial{
		501: {ID: 501, OrderID: 100, ProductID: 1, RequestedKg: 500, ExtractedKg: 500},
	}}
}

func (m *memoryOrders) GetMaterial(ctx context.Context, id int64) (orders.OrderMaterial, error) {
	mat, ok := m.materials[id]
	if !ok {
		return orders.OrderMaterial{}, orders.ErrNotFound
	}
	return mat, nil
}

func (m *memoryOrders) RecordSortingOutcome(ctx context.Context, actor shared.Actor, materialID int64, sortedKg, wasteKg float64) (orders.OrderMaterial, error) {
	if m.fail != nil {
		return orders.OrderMaterial{}, m.fail
	}
	mat, ok := m.materials[materialID]
	if !ok {
		return orders.OrderMaterial{}, orders.ErrNotFound
	}
	mat.SortedKg += sortedKg
	mat.SortingWasteKg += wasteKg
	m.materials[materialID] = mat
	return mat, nil
}

func (m *memoryOrders) RecordCuttingOutcome(ctx context.Context, actor shared.Actor, materialID int64, cutKg, wasteKg, remainingKg float64) (orders.OrderMaterial, error) {
	if m.fail != nil {
		return orders.OrderMaterial{}, m.fail
	}
	mat, ok := m.materials[materialID]
	if !ok {
		return orders.OrderMaterial{}, orders.ErrNotFound
	}
	mat.CutKg += cutKg
	mat.CuttingWasteKg += wasteKg
	mat.RemainingKg += remainingKg
	m.materials[materialID] = mat
	return mat, nil
}

type fakeTransfers struct {
	created [][]transfer.CreateInput
	fail    error
}

func (f *fakeTransfers) CreateGroup(ctx context.Context, actor shared.Actor, inputs []transfer.CreateInput) ([]transfer.WeightTransfer, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.created = append(f.created, inputs)
	result := make([]transfer.WeightTransfer, 0, len(inputs))
	for i, in := range inputs {
		result = append(result, transfer.WeightTransfer{
			ID:              int64(i + 1),
			OrderID:         in.OrderID,
			ProductID:       in.ProductID,
			WeightKg:        in.WeightKg,
			Type:            in.Type,
			Category:        in.Category,
			SourceWarehouse: in.SourceWarehouse,
			DestWarehouse:   in.DestWarehouse,
			GroupID:         in.GroupID,
			Status:          transfer.StatusPending,
		})
	}
	return result, nil
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

var station = shared.Actor{ID: 20, Name: "sorting-station"}

func sortingInput() SortingInput {
	return SortingInput{
		OrderID:          100,
		OrderMaterialID:  501,
		ProductID:        1,
		InputKg:          500,
		SortingWarehouse: 2,
		Outputs: []Output{
			{Category: transfer.CategorySortedMaterial, WeightKg: 430, Dest: 3},
			{Category: transfer.CategoryWaste, WeightKg: 70, Dest: 4},
		},
	}
}

func TestRecordSortingBalanced(t *testing.T) {
	ordersPort := newMemoryOrders()
	transfersPort := &fakeTransfers{}
	svc := NewService(ordersPort, transfersPort, nil, nil, nil)

	result, err := svc.RecordSorting(context.Background(), station, sortingInput())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.GroupID)
	require.InDelta(t, 430, result.Material.SortedKg, 0.0001)
	require.InDelta(t, 70, result.Material.SortingWasteKg, 0.0001)

	require.Len(t, transfersPort.created, 1)
	cohort := transfersPort.created[0]
	require.Len(t, cohort, 2)
	require.Equal(t, transfer.CategorySortedMaterial, cohort[0].Category)
	require.Equal(t, orders.StageCutting, cohort[0].ToStage)
	require.Equal(t, transfer.CategoryWaste, cohort[1].Category)
	require.Equal(t, transfer.TypeWaste, cohort[1].Type)
	require.Equal(t, cohort[0].GroupID, cohort[1].GroupID, "both legs share a group")
}

func TestRecordSortingOneTransferPerKeptRoll(t *testing.T) {
	ordersPort := newMemoryOrders()
	ordersPort.materials[501] = orders.OrderMaterial{ID: 501, OrderID: 100, ProductID: 1, RequestedKg: 2000, ExtractedKg: 2000}
	transfersPort := &fakeTransfers{}
	svc := NewService(ordersPort, transfersPort, nil, nil, nil)

	input := SortingInput{
		OrderID:          100,
		OrderMaterialID:  501,
		ProductID:        1,
		InputKg:          2000,
		SortingWarehouse: 2,
		Outputs: []Output{
			{Category: transfer.CategorySortedMaterial, WeightKg: 1300, Dest: 3, ProductID: 11},
			{Category: transfer.CategorySortedMaterial, WeightKg: 600, Dest: 3, ProductID: 12},
			{Category: transfer.CategoryWaste, WeightKg: 100, Dest: 4},
		},
	}
	result, err := svc.RecordSorting(context.Background(), station, input)
	require.NoError(t, err)
	require.InDelta(t, 1900, result.Material.SortedKg, 0.0001)
	require.InDelta(t, 100, result.Material.SortingWasteKg, 0.0001)

	cohort := transfersPort.created[0]
	require.Len(t, cohort, 3, "each kept roll and the waste become their own transfer")
	require.InDelta(t, 1300, cohort[0].WeightKg, 0.0001)
	require.Equal(t, int64(11), cohort[0].ProductID)
	require.InDelta(t, 600, cohort[1].WeightKg, 0.0001)
	require.Equal(t, int64(12), cohort[1].ProductID)
	require.Equal(t, transfer.CategoryWaste, cohort[2].Category)
	require.Equal(t, int64(1), cohort[2].ProductID, "waste leg inherits the input product")
	for _, leg := range cohort {
		require.Equal(t, cohort[0].GroupID, leg.GroupID, "the whole cohort shares one group")
	}
}

func TestRecordSortingRejectsImbalance(t *testing.T) {
	ordersPort := newMemoryOrders()
	transfersPort := &fakeTransfers{}
	svc := NewService(ordersPort, transfersPort, nil, nil, nil)

	input := sortingInput()
	input.Outputs[1].WeightKg = 69.5 // 0.5 kg unaccounted for

	_, err := svc.RecordSorting(context.Background(), station, input)
	require.ErrorIs(t, err, ErrWeightImbalance)

	require.Empty(t, transfersPort.created, "imbalanced result must not create transfers")
	require.InDelta(t, 0, ordersPort.materials[501].SortedKg, 0.0001, "imbalanced result must not touch the material")
}

func TestRecordSortingWithinTolerance(t *testing.T) {
	ordersPort := newMemoryOrders()
	svc := NewService(ordersPort, &fakeTransfers{}, nil, nil, nil)

	input := sortingInput()
	input.Outputs[1].WeightKg = 69.995 // 5 g off, inside the tolerance

	_, err := svc.RecordSorting(context.Background(), station, input)
	require.NoError(t, err)
}

func TestRecordSortingDeduplicates(t *testing.T) {
	ordersPort := newMemoryOrders()
	idem := newFakeIdempotency()
	svc := NewService(ordersPort, &fakeTransfers{}, idem, nil, nil)

	input := sortingInput()
	input.IdempotencyKey = "station-2:batch-77"

	_, err := svc.RecordSorting(context.Background(), station, input)
	require.NoError(t, err)

	_, err = svc.RecordSorting(context.Background(), station, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestRecordSortingReleasesClaimOnFailure(t *testing.T) {
	ordersPort := newMemoryOrders()
	transfersPort := &fakeTransfers{fail: errors.New("warehouse offline")}
	idem := newFakeIdempotency()
	svc := NewService(ordersPort, transfersPort, idem, nil, nil)

	input := sortingInput()
	input.IdempotencyKey = "station-2:batch-78"

	_, err := svc.RecordSorting(context.Background(), station, input)
	require.Error(t, err)
	require.Empty(t, idem.keys, "failed submission must release its claim for retry")

	transfersPort.fail = nil
	_, err = svc.RecordSorting(context.Background(), station, input)
	require.NoError(t, err)
}

func TestRecordCuttingBalanced(t *testing.T) {
	ordersPort := newMemoryOrders()
	ordersPort.materials[501] = orders.OrderMaterial{ID: 501, OrderID: 100, ProductID: 1, ExtractedKg: 500, SortedKg: 430}
	transfersPort := &fakeTransfers{}
	svc := NewService(ordersPort, transfersPort, nil, nil, nil)

	input := CuttingInput{
		OrderID:          100,
		OrderMaterialID:  501,
		ProductID:        1,
		InputKg:          430,
		CuttingWarehouse: 3,
		Outputs: []Output{
			{Category: transfer.CategoryCut, WeightKg: 370, Dest: 5},
			{Category: transfer.CategoryWaste, WeightKg: 40, Dest: 4},
			{Category: transfer.CategoryRemainder, WeightKg: 20, Dest: 1},
		},
	}
	result, err := svc.RecordCutting(context.Background(), station, input)
	require.NoError(t, err)
	require.InDelta(t, 370, result.Material.CutKg, 0.0001)
	require.InDelta(t, 20, result.Material.RemainingKg, 0.0001)

	cohort := transfersPort.created[0]
	require.Len(t, cohort, 3)
	require.Equal(t, transfer.CategoryCut, cohort[0].Category)
	require.Equal(t, orders.StagePackaging, cohort[0].ToStage)
	require.Equal(t, transfer.CategoryWaste, cohort[1].Category)
	require.Equal(t, transfer.CategoryRemainder, cohort[2].Category)
	require.Equal(t, transfer.TypeReturn, cohort[2].Type)
}

func TestRecordCuttingRejectsImbalance(t *testing.T) {
	ordersPort := newMemoryOrders()
	transfersPort := &fakeTransfers{}
	svc := NewService(ordersPort, transfersPort, nil, nil, nil)

	input := CuttingInput{
		OrderID:          100,
		OrderMaterialID:  501,
		ProductID:        1,
		InputKg:          430,
		CuttingWarehouse: 3,
		Outputs: []Output{
			{Category: transfer.CategoryCut, WeightKg: 370, Dest: 5},
			{Category: transfer.CategoryWaste, WeightKg: 40, Dest: 4},
			{Category: transfer.CategoryRemainder, WeightKg: 5, Dest: 1}, // 15 kg short
		},
	}
	_, err := svc.RecordCutting(context.Background(), station, input)
	require.ErrorIs(t, err, ErrWeightImbalance)
	require.Empty(t, transfersPort.created)
}

func TestRecordCuttingSingleOutput(t *testing.T) {
	ordersPort := newMemoryOrders()
	transfersPort := &fakeTransfers{}
	svc := NewService(ordersPort, transfersPort, nil, nil, nil)

	input := CuttingInput{
		OrderID:          100,
		OrderMaterialID:  501,
		ProductID:        1,
		InputKg:          430,
		CuttingWarehouse: 3,
		Outputs:          []Output{{Category: transfer.CategoryCut, WeightKg: 430, Dest: 5}},
	}
	_, err := svc.RecordCutting(context.Background(), station, input)
	require.NoError(t, err)
	require.Len(t, transfersPort.created[0], 1)
}

func TestRecordSortingRejectsBadOutputs(t *testing.T) {
	svc := NewService(newMemoryOrders(), &fakeTransfers{}, nil, nil, nil)

	input := sortingInput()
	input.Outputs[0].WeightKg = -1
	_, err := svc.RecordSorting(context.Background(), station, input)
	require.ErrorIs(t, err, orders.ErrValidation)

	input = sortingInput()
	input.Outputs[0].Category = transfer.CategoryCut
	_, err = svc.RecordSorting(context.Background(), station, input)
	require.ErrorIs(t, err, orders.ErrValidation, "cut is not a sorting category")

	input = sortingInput()
	input.Outputs = nil
	_, err = svc.RecordSorting(context.Background(), station, input)
	require.ErrorIs(t, err, orders.ErrValidation)
}
