package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"go-flying-image/internal/capability"
	"go-flying-image/internal/logger"
)

// DefaultPlanName is shown when the subscription is unknown
const DefaultPlanName = "Free"

// AccountStatus is the billing summary rendered in the status bar
type AccountStatus struct {
	RemainingCredits int64
	PlanName         string
}

// AccountService reads billing state for display
type AccountService interface {
	Status(ctx context.Context, user capability.Identity) AccountStatus
	SubscribeURL(ctx context.Context, user capability.Identity) (string, error)
}

type accountService struct {
	billing capability.Billing
}

func NewAccountService(billing capability.Billing) AccountService {
	return &accountService{billing: billing}
}

// Status fetches usage and plan concurrently. Missing values fall back to
// zero credits and the free plan.
func (s *accountService) Status(ctx context.Context, user capability.Identity) AccountStatus {
	status := AccountStatus{PlanName: DefaultPlanName}
	if s.billing == nil {
		return status
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		usage, err := s.billing.Usage(ctx, user)
		if err != nil {
			logger.WithFields(logrus.Fields{"user_id": user.UserID, "error": err.Error()}).Warn("Failed to fetch usage")
			return
		}
		if usage != nil {
			status.RemainingCredits = usage.RemainingCredits
		}
	}()

	var planName string
	go func() {
		defer wg.Done()
		sub, err := s.billing.Subscription(ctx, user)
		if err != nil {
			logger.WithFields(logrus.Fields{"user_id": user.UserID, "error": err.Error()}).Warn("Failed to fetch subscription")
			return
		}
		if sub != nil {
			planName = sub.PlanName
		}
	}()

	wg.Wait()

	if planName != "" {
		status.PlanName = planName
	}
	return status
}

func (s *accountService) SubscribeURL(ctx context.Context, user capability.Identity) (string, error) {
	return s.billing.SubscribeURL(ctx, user)
}
