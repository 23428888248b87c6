package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paperline-erp/paperline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	GetMaterial(ctx context.Context, id int64) (OrderMaterial, error)
	ListMaterials(ctx context.Context, orderID int64) ([]OrderMaterial, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertMaterial(ctx context.Context, material OrderMaterial) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	GetMaterialForUpdate(ctx context.Context, id int64) (OrderMaterial, error)
	UpdateOrderStage(ctx context.Context, id int64, stage Stage) error
	UpdateMaterialWeights(ctx context.Context, material OrderMaterial) error
	InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error
}

// Service coordinates order lifecycle and material weight bookkeeping.
type Service struct {
	repo RepositoryPort
}

// NewService builds an orders service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new order.
type CreateInput struct {
	OrderNumber      string
	CustomerName     string
	RequiredWeightKg float64
}

// Create registers an order in the creation stage.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Order, error) {
	input.OrderNumber = strings.TrimSpace(input.OrderNumber)
	if input.OrderNumber == "" {
		input.OrderNumber = fmt.Sprintf("ORD-%d", time.Now().UnixNano())
	}
	if input.RequiredWeightKg < 0 {
		return Order{}, ErrValidation
	}
	order := Order{
		OrderNumber:      input.OrderNumber,
		CustomerName:     strings.TrimSpace(input.CustomerName),
		CurrentStage:     StageCreation,
		RequiredWeightKg: input.RequiredWeightKg,
		Status:           OrderStatusOpen,
		CreatedBy:        actor.ID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "order.created",
			Entity:    "order",
			EntityID:  order.OrderNumber,
			NewValues: map[string]any{"stage": string(order.CurrentStage), "required_weight_kg": order.RequiredWeightKg},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// AddMaterial attaches a material requirement to an order.
func (s *Service) AddMaterial(ctx context.Context, actor shared.Actor, orderID, productID int64, requestedKg float64) (OrderMaterial, error) {
	if productID == 0 || requestedKg <= 0 {
		return OrderMaterial{}, ErrValidation
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return OrderMaterial{}, err
	}
	material := OrderMaterial{OrderID: order.ID, ProductID: productID, RequestedKg: requestedKg}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertMaterial(ctx, material)
		if err != nil {
			return err
		}
		material.ID = id
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "order.material_added",
			Entity:    "order_material",
			EntityID:  fmt.Sprintf("%d", id),
			NewValues: map[string]any{"order_id": order.ID, "product_id": productID, "requested_kg": requestedKg},
		})
	})
	if err != nil {
		return OrderMaterial{}, err
	}
	return material, nil
}

// AdvanceStage moves an order forward. The target must be reachable through
// the ordered transition table: only skippable stages may be jumped over.
func (s *Service) AdvanceStage(ctx context.Context, actor shared.Actor, orderID int64, to Stage) (Order, error) {
	if !ValidStage(to) {
		return Order{}, ErrValidation
	}
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanAdvance(order.CurrentStage, to) {
			return ErrStageOrder
		}
		if err := tx.UpdateOrderStage(ctx, orderID, to); err != nil {
			return err
		}
		updated = order
		updated.CurrentStage = to
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: "order.stage_advanced",
			Entity:    "order",
			EntityID:  order.OrderNumber,
			OldValues: map[string]any{"stage": string(order.CurrentStage)},
			NewValues: map[string]any{"stage": string(to)},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// Get fetches an order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetMaterial fetches an order material.
func (s *Service) GetMaterial(ctx context.Context, id int64) (OrderMaterial, error) {
	return s.repo.GetMaterial(ctx, id)
}

// ListMaterials returns materials of an order.
func (s *Service) ListMaterials(ctx context.Context, orderID int64) ([]OrderMaterial, error) {
	return s.repo.ListMaterials(ctx, orderID)
}

// RecordExtraction adds extracted weight for a material.
func (s *Service) RecordExtraction(ctx context.Context, actor shared.Actor, materialID int64, kg float64) (OrderMaterial, error) {
	return s.updateWeights(ctx, actor, materialID, "order.material_extracted", func(m *OrderMaterial) error {
		if kg <= 0 {
			return ErrValidation
		}
		m.ExtractedKg += kg
		return nil
	})
}

// RecordSortingOutcome books sorted and waste weight against the extracted
// total. Fails when extraction would no longer cover sorted + waste.
func (s *Service) RecordSortingOutcome(ctx context.Context, actor shared.Actor, materialID int64, sortedKg, wasteKg float64) (OrderMaterial, error) {
	return s.updateWeights(ctx, actor, materialID, "order.material_sorted", func(m *OrderMaterial) error {
		if sortedKg < 0 || wasteKg < 0 || sortedKg+wasteKg == 0 {
			return ErrValidation
		}
		m.SortedKg += sortedKg
		m.SortingWasteKg += wasteKg
		if !m.SortingBalanced() {
			return ErrWeightConservation
		}
		return nil
	})
}

// RecordCuttingOutcome books cut, waste and remaining weight against the
// sorted total. Fails when sorted weight would no longer cover the outputs.
func (s *Service) RecordCuttingOutcome(ctx context.Context, actor shared.Actor, materialID int64, cutKg, wasteKg, remainingKg float64) (OrderMaterial, error) {
	return s.updateWeights(ctx, actor, materialID, "order.material_cut", func(m *OrderMaterial) error {
		if cutKg < 0 || wasteKg < 0 || remainingKg < 0 || cutKg+wasteKg+remainingKg == 0 {
			return ErrValidation
		}
		m.CutKg += cutKg
		m.CuttingWasteKg += wasteKg
		m.RemainingKg += remainingKg
		if !m.CuttingBalanced() {
			return ErrWeightConservation
		}
		return nil
	})
}

// RecordDelivery books delivered weight.
func (s *Service) RecordDelivery(ctx context.Context, actor shared.Actor, materialID int64, kg float64) (OrderMaterial, error) {
	return s.updateWeights(ctx, actor, materialID, "order.material_delivered", func(m *OrderMaterial) error {
		if kg <= 0 {
			return ErrValidation
		}
		m.DeliveredKg += kg
		return nil
	})
}

// RecordReturn books returned weight.
func (s *Service) RecordReturn(ctx context.Context, actor shared.Actor, materialID int64, kg float64) (OrderMaterial, error) {
	return s.updateWeights(ctx, actor, materialID, "order.material_returned", func(m *OrderMaterial) error {
		if kg <= 0 {
			return ErrValidation
		}
		m.ReturnedKg += kg
		return nil
	})
}

func (s *Service) updateWeights(ctx context.Context, actor shared.Actor, materialID int64, eventType string, apply func(*OrderMaterial) error) (OrderMaterial, error) {
	var updated OrderMaterial
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		material, err := tx.GetMaterialForUpdate(ctx, materialID)
		if err != nil {
			return err
		}
		before := material
		if err := apply(&material); err != nil {
			return err
		}
		if err := tx.UpdateMaterialWeights(ctx, material); err != nil {
			return err
		}
		updated = material
		return tx.InsertAuditEntry(ctx, shared.AuditEntry{
			ActorID:   actor.ID,
			EventType: eventType,
			Entity:    "order_material",
			EntityID:  fmt.Sprintf("%d", materialID),
			OldValues: weightValues(before),
			NewValues: weightValues(material),
		})
	})
	if err != nil {
		return OrderMaterial{}, err
	}
	return updated, nil
}

func weightValues(m OrderMaterial) map[string]any {
	return map[string]any{
		"extracted_kg":     m.ExtractedKg,
		"sorted_kg":        m.SortedKg,
		"cut_kg":           m.CutKg,
		"delivered_kg":     m.DeliveredKg,
		"returned_kg":      m.ReturnedKg,
		"sorting_waste_kg": m.SortingWasteKg,
		"cutting_waste_kg": m.CuttingWasteKg,
		"remaining_kg":     m.RemainingKg,
	}
}
