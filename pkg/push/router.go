package push

import (
	"context"
	"fmt"
)

// Platform-specific providers keyed by the platform a device registered with.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

const PriorityHigh = "high"

// Router sends through the provider registered for a device platform. Devices
// without a platform go to the default provider.
type Router struct {
	providers map[string]PushProvider
	fallback  PushProvider
}

func NewRouter(fallback PushProvider) *Router {
	return &Router{providers: make(map[string]PushProvider), fallback: fallback}
}

func (r *Router) Register(platform string, provider PushProvider) {
	r.providers[platform] = provider
	if r.fallback == nil {
		r.fallback = provider
	}
}

func (r *Router) Send(ctx context.Context, platform string, request *NotificationRequest) (*NotificationResponse, error) {
	if request.Token == "" {
		return nil, ErrNoToken
	}
	provider, ok := r.providers[platform]
	if !ok {
		provider = r.fallback
	}
	if provider == nil {
		return nil, fmt.Errorf("no push provider for platform %q", platform)
	}
	return provider.SendNotification(ctx, request)
}
