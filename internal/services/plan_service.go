package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"paygate/internal/models/response_models"
	"paygate/internal/repositories"
	"paygate/pkg/utils"
)

type PlanServiceInterface interface {
	ListPlans(ctx context.Context, botID uuid.UUID, activeOnly bool) ([]response_models.PlanResponse, error)
}

func NewPlanService(planRepo repositories.IPlanRepository) PlanServiceInterface {
	return &PlanService{
		planRepo: planRepo,
	}
}

type PlanService struct {
	planRepo repositories.IPlanRepository
}

// ListPlans returns the plans a bot sells, oldest first.
func (p *PlanService) ListPlans(ctx context.Context, botID uuid.UUID, activeOnly bool) ([]response_models.PlanResponse, error) {
	plans, err := p.planRepo.ListByBot(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}

	result := make([]response_models.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		if activeOnly && !plan.IsActive {
			continue
		}

		var features []string
		if len(plan.Features) > 0 {
			// malformed feature lists are shown as empty
			_ = json.Unmarshal(plan.Features, &features)
		}

		result = append(result, response_models.PlanResponse{
			ID:       plan.ID,
			Code:     plan.Code,
			Name:     plan.Name,
			Period:   string(plan.Period),
			Price:    plan.Price.StringFixed(2),
			Currency: plan.Currency,
			IsActive: plan.IsActive,
			Features: features,
		})
	}

	return result, nil
}
