package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-flying-image/internal/capability"
)

type fakeBilling struct {
	usage    *capability.Usage
	usageErr error
	sub      *capability.Subscription
	subErr   error
}

func (f *fakeBilling) Usage(ctx context.Context, user capability.Identity) (*capability.Usage, error) {
	return f.usage, f.usageErr
}

func (f *fakeBilling) Subscription(ctx context.Context, user capability.Identity) (*capability.Subscription, error) {
	return f.sub, f.subErr
}

func (f *fakeBilling) SubscribeURL(ctx context.Context, user capability.Identity) (string, error) {
	return "https://billing.example.com/portal", nil
}

func TestAccountStatus(t *testing.T) {
	tests := []struct {
		name    string
		billing *fakeBilling
		want    AccountStatus
	}{
		{
			name:    "known values",
			billing: &fakeBilling{usage: &capability.Usage{RemainingCredits: 42}, sub: &capability.Subscription{PlanName: "Pro"}},
			want:    AccountStatus{RemainingCredits: 42, PlanName: "Pro"},
		},
		{
			name:    "errors fall back to defaults",
			billing: &fakeBilling{usageErr: errors.New("down"), subErr: errors.New("down")},
			want:    AccountStatus{RemainingCredits: 0, PlanName: "Free"},
		},
		{
			name:    "empty plan name",
			billing: &fakeBilling{usage: &capability.Usage{RemainingCredits: 3}, sub: &capability.Subscription{}},
			want:    AccountStatus{RemainingCredits: 3, PlanName: "Free"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAccountService(tt.billing)
			assert.Equal(t, tt.want, svc.Status(context.Background(), testUser))
		})
	}
}

func TestAccountStatus_NoBilling(t *testing.T) {
	svc := NewAccountService(nil)
	assert.Equal(t, AccountStatus{PlanName: "Free"}, svc.Status(context.Background(), testUser))
}
