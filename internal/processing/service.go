// Package processing records sorting and cutting outcomes: each result is
// validated for weight conservation, posted to the order material record and
// materialised as a cohort of weight transfers sharing one group id.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/paperline-erp/paperline-erp/internal/orders"
	"github.com/paperline-erp/paperline-erp/internal/shared"
	"github.com/paperline-erp/paperline-erp/internal/transfer"
)

// weightTolerance is the absolute kilogram slack allowed when checking that
// outputs account for the processed input.
const weightTolerance = 0.01

// ErrWeightImbalance indicates the declared outputs do not add up to the
// processed input within tolerance. Nothing is persisted.
var ErrWeightImbalance = errors.New("processing: output weights do not balance input")

// OrdersPort is the slice of order bookkeeping the recorder uses.
type OrdersPort interface {
	GetMaterial(ctx context.Context, id int64) (orders.OrderMaterial, error)
	RecordSortingOutcome(ctx context.Context, actor shared.Actor, materialID int64, sortedKg, wasteKg float64) (orders.OrderMaterial, error)
	RecordCuttingOutcome(ctx context.Context, actor shared.Actor, materialID int64, cutKg, wasteKg, remainingKg float64) (orders.OrderMaterial, error)
}

// TransfersPort creates the transfer cohort born from one result.
type TransfersPort interface {
	CreateGroup(ctx context.Context, actor shared.Actor, inputs []transfer.CreateInput) ([]transfer.WeightTransfer, error)
}

// IdempotencyPort guards results against duplicate submission.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort counts rejected results.
type MetricsPort interface {
	WeightImbalanceRejected()
}

// Service records processing results.
type Service struct {
	orders      OrdersPort
	transfers   TransfersPort
	idempotency IdempotencyPort
	metrics     MetricsPort
	logger      *slog.Logger
}

// NewService builds the processing recorder. Idempotency and metrics are
// optional.
func NewService(ordersPort OrdersPort, transfers TransfersPort, idempotency IdempotencyPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: ordersPort, transfers: transfers, idempotency: idempotency, metrics: metrics, logger: logger}
}

// Output is one declared product of a processing run. A station reports as
// many outputs as it produced rolls: each becomes its own transfer.
type Output struct {
	Category transfer.Category
	WeightKg float64
	// Dest receives the output.
	Dest int64
	// ProductID identifies the spec of the produced roll. Zero inherits the
	// input material's product.
	ProductID int64
}

// SortingInput declares the outcome of sorting one material batch.
type SortingInput struct {
	OrderID         int64
	OrderMaterialID int64
	ProductID       int64
	// InputKg is the weight that entered the sorting station.
	InputKg float64
	// SortingWarehouse is where the input currently sits.
	SortingWarehouse int64
	// Outputs split the input into kept rolls and waste. Sorted material
	// moves on to cutting; waste stays at the sorting stage.
	Outputs []Output
	// IdempotencyKey deduplicates station submissions. Optional.
	IdempotencyKey string
}

// CuttingInput declares the outcome of cutting one material batch.
type CuttingInput struct {
	OrderID          int64
	OrderMaterialID  int64
	ProductID        int64
	InputKg          float64
	CuttingWarehouse int64
	// Outputs split the input into cut rolls, waste and unprocessed
	// remainder. Remainder usually returns to the custody or main warehouse
	// it came from.
	Outputs        []Output
	IdempotencyKey string
}

// Result is a recorded processing outcome.
type Result struct {
	GroupID   uuid.UUID
	Material  orders.OrderMaterial
	Transfers []transfer.WeightTransfer
}

// RecordSorting validates and records a sorting outcome. The declared outputs
// must account for the input within tolerance; on imbalance the whole result
// is rejected and nothing is persisted. Every output becomes one transfer in
// a shared group: waste headed for a scrap sink auto-approves, kept rolls
// enter the approval chain.
func (s *Service) RecordSorting(ctx context.Context, actor shared.Actor, input SortingInput) (Result, error) {
	if input.InputKg <= 0 {
		return Result{}, fmt.Errorf("%w: input weight must be positive", orders.ErrValidation)
	}
	if len(input.Outputs) == 0 {
		return Result{}, fmt.Errorf("%w: at least one output required", orders.ErrValidation)
	}
	var sortedKg, wasteKg float64
	for _, out := range input.Outputs {
		if out.WeightKg <= 0 {
			return Result{}, fmt.Errorf("%w: output weights must be positive", orders.ErrValidation)
		}
		switch out.Category {
		case transfer.CategorySortedMaterial:
			sortedKg += out.WeightKg
		case transfer.CategoryWaste:
			wasteKg += out.WeightKg
		default:
			return Result{}, fmt.Errorf("%w: sorting does not produce category %q", orders.ErrValidation, out.Category)
		}
	}
	if err := s.checkBalance(input.InputKg, sortedKg+wasteKg); err != nil {
		return Result{}, err
	}
	release, err := s.claim(ctx, input.IdempotencyKey)
	if err != nil {
		return Result{}, err
	}
	material, err := s.orders.RecordSortingOutcome(ctx, actor, input.OrderMaterialID, sortedKg, wasteKg)
	if err != nil {
		release()
		return Result{}, err
	}
	groupID := uuid.New()
	cohort := make([]transfer.CreateInput, 0, len(input.Outputs))
	for _, out := range input.Outputs {
		leg := transfer.CreateInput{
			OrderID:         input.OrderID,
			OrderMaterialID: input.OrderMaterialID,
			ProductID:       outputProduct(out, input.ProductID),
			FromStage:       orders.StageSorting,
			ToStage:         orders.StageSorting,
			WeightKg:        out.WeightKg,
			Type:            transfer.TypeWaste,
			Category:        out.Category,
			SourceWarehouse: input.SortingWarehouse,
			DestWarehouse:   out.Dest,
			GroupID:         groupID,
		}
		if out.Category == transfer.CategorySortedMaterial {
			leg.ToStage = orders.StageCutting
			leg.Type = transfer.TypeStageTransfer
		}
		cohort = append(cohort, leg)
	}
	transfers, err := s.transfers.CreateGroup(ctx, actor, cohort)
	if err != nil {
		release()
		return Result{}, err
	}
	s.logger.Info("sorting result recorded",
		slog.Int64("order_material_id", input.OrderMaterialID),
		slog.String("group_id", groupID.String()),
		slog.Int("outputs", len(input.Outputs)),
		slog.Float64("sorted_kg", sortedKg),
		slog.Float64("waste_kg", wasteKg))
	return Result{GroupID: groupID, Material: material, Transfers: transfers}, nil
}

// RecordCutting validates and records a cutting outcome. Cut rolls, waste and
// remainder must account for the input within tolerance.
func (s *Service) RecordCutting(ctx context.Context, actor shared.Actor, input CuttingInput) (Result, error) {
	if input.InputKg <= 0 {
		return Result{}, fmt.Errorf("%w: input weight must be positive", orders.ErrValidation)
	}
	if len(input.Outputs) == 0 {
		return Result{}, fmt.Errorf("%w: at least one output required", orders.ErrValidation)
	}
	var cutKg, wasteKg, remainingKg float64
	for _, out := range input.Outputs {
		if out.WeightKg <= 0 {
			return Result{}, fmt.Errorf("%w: output weights must be positive", orders.ErrValidation)
		}
		switch out.Category {
		case transfer.CategoryCut:
			cutKg += out.WeightKg
		case transfer.CategoryWaste:
			wasteKg += out.WeightKg
		case transfer.CategoryRemainder:
			remainingKg += out.WeightKg
		default:
			return Result{}, fmt.Errorf("%w: cutting does not produce category %q", orders.ErrValidation, out.Category)
		}
	}
	if err := s.checkBalance(input.InputKg, cutKg+wasteKg+remainingKg); err != nil {
		return Result{}, err
	}
	release, err := s.claim(ctx, input.IdempotencyKey)
	if err != nil {
		return Result{}, err
	}
	material, err := s.orders.RecordCuttingOutcome(ctx, actor, input.OrderMaterialID, cutKg, wasteKg, remainingKg)
	if err != nil {
		release()
		return Result{}, err
	}
	groupID := uuid.New()
	cohort := make([]transfer.CreateInput, 0, len(input.Outputs))
	for _, out := range input.Outputs {
		leg := transfer.CreateInput{
			OrderID:         input.OrderID,
			OrderMaterialID: input.OrderMaterialID,
			ProductID:       outputProduct(out, input.ProductID),
			FromStage:       orders.StageCutting,
			ToStage:         orders.StageCutting,
			WeightKg:        out.WeightKg,
			Category:        out.Category,
			SourceWarehouse: input.CuttingWarehouse,
			DestWarehouse:   out.Dest,
			GroupID:         groupID,
		}
		switch out.Category {
		case transfer.CategoryCut:
			leg.ToStage = orders.StagePackaging
			leg.Type = transfer.TypeStageTransfer
		case transfer.CategoryWaste:
			leg.Type = transfer.TypeWaste
		case transfer.CategoryRemainder:
			leg.Type = transfer.TypeReturn
		}
		cohort = append(cohort, leg)
	}
	transfers, err := s.transfers.CreateGroup(ctx, actor, cohort)
	if err != nil {
		release()
		return Result{}, err
	}
	s.logger.Info("cutting result recorded",
		slog.Int64("order_material_id", input.OrderMaterialID),
		slog.String("group_id", groupID.String()),
		slog.Int("outputs", len(input.Outputs)),
		slog.Float64("cut_kg", cutKg),
		slog.Float64("waste_kg", wasteKg),
		slog.Float64("remaining_kg", remainingKg))
	return Result{GroupID: groupID, Material: material, Transfers: transfers}, nil
}

// checkBalance enforces weight conservation between input and outputs.
func (s *Service) checkBalance(inputKg, outputsKg float64) error {
	if imbalance := math.Abs(inputKg - outputsKg); imbalance > weightTolerance {
		if s.metrics != nil {
			s.metrics.WeightImbalanceRejected()
		}
		return fmt.Errorf("%w: input %.4f kg, outputs %.4f kg, off by %.4f kg",
			ErrWeightImbalance, inputKg, outputsKg, imbalance)
	}
	return nil
}

func outputProduct(out Output, fallback int64) int64 {
	if out.ProductID != 0 {
		return out.ProductID
	}
	return fallback
}

// claim takes the idempotency slot for a result submission. The returned
// release func frees the slot when the submission fails downstream.
func (s *Service) claim(ctx context.Context, key string) (func(), error) {
	if s.idempotency == nil || key == "" {
		return func() {}, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "processing"); err != nil {
		return nil, err
	}
	return func() {
		if err := s.idempotency.Delete(ctx, key); err != nil {
			s.logger.Error("release idempotency claim", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}
