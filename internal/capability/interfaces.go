package capability

import (
	"context"
)

// Identity is the signed-in user as reported by the auth capability
type Identity struct {
	UserID string
	Email  string
	// Token is the raw session token, forwarded to the platform on the user's behalf
	Token string
}

// Authenticator resolves session tokens issued by the external auth provider
type Authenticator interface {
	// Authenticate validates a session token and returns the identity it carries
	Authenticate(token string) (*Identity, error)

	// SignInURL returns the hosted sign-in page that redirects back to returnTo
	SignInURL(returnTo string) string
}

// Usage is the credit balance of a user
type Usage struct {
	RemainingCredits int64 `json:"remainingCredits"`
}

// Subscription describes the current plan of a user
type Subscription struct {
	PlanName string
}

// Billing exposes credit and subscription state
type Billing interface {
	Usage(ctx context.Context, user Identity) (*Usage, error)
	Subscription(ctx context.Context, user Identity) (*Subscription, error)
	// SubscribeURL returns the subscription management page for the user
	SubscribeURL(ctx context.Context, user Identity) (string, error)
}

// TransformInput is the model input of one generation
type TransformInput struct {
	Prompt     string `json:"prompt"`
	InputImage string `json:"input_image"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// TransformOutput holds result references, in model order
type TransformOutput struct {
	Output []string `json:"output"`
}

// Transformer runs a hosted image model.
// Failures are reported as *Failure whenever the cause is known.
type Transformer interface {
	Run(ctx context.Context, user Identity, model string, input TransformInput) (*TransformOutput, error)
}
