package llm

import (
	"context"
	"strconv"
	"sync"

	"modelrelay/misc"

	"github.com/openai/openai-go/v3/option"
)

// --- per-API-key rate limiting ---

// rateLimitedClient wraps a Client with a per-API-key semaphore.
type rateLimitedClient struct {
	inner     Client
	semaphore chan struct{}
}

func (r *rateLimitedClient) Chat(ctx context.Context, payload Payload) (Response, error) {
	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	return r.inner.Chat(ctx, payload)
}

// keySemaphores stores one semaphore per API key so that all clients sharing
// the same key share the same concurrency limit.
var keySemaphores = struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}{m: make(map[string]chan struct{})}

// getOrCreateSemaphore returns the semaphore for the given API key,
// creating one with the specified capacity if it doesn't exist yet.
func getOrCreateSemaphore(apiKey string, capacity int) chan struct{} {
	keySemaphores.mu.Lock()
	defer keySemaphores.mu.Unlock()
	if sem, ok := keySemaphores.m[apiKey]; ok {
		return sem
	}
	sem := make(chan struct{}, capacity)
	keySemaphores.m[apiKey] = sem
	return sem
}

// clientPool caches one Client per API key so repeated requests with the
// same bearer credential reuse the same underlying HTTP client.
var clientPool = struct {
	mu sync.Mutex
	m  map[string]Client
}{m: make(map[string]Client)}

// ForAPIKey returns the chat client for the given bearer API key, creating
// and caching it on first use. It reads BASE_URL and USER_AGENT from the
// [llm] config section and MaxRequest (per-key concurrency limit) from [llm]
// first, falling back to [main_setting].
func ForAPIKey(apiKey string) Client {
	clientPool.mu.Lock()
	defer clientPool.mu.Unlock()
	if cli, ok := clientPool.m[apiKey]; ok {
		return cli
	}

	baseURL := misc.GetConfigValueDefault("llm", "BASE_URL", "")
	userAgent := misc.GetConfigValueDefault("llm", "USER_AGENT", "")
	if userAgent == "" {
		userAgent = misc.GetConfigValueDefault("main_setting", "USER_AGENT", "ModelRelay")
	}

	maxReqStr := misc.GetConfigValueDefault("llm", "MaxRequest",
		misc.GetConfigValueDefault("main_setting", "MaxRequest", "3"))
	maxReq, _ := strconv.Atoi(maxReqStr)
	if maxReq <= 0 {
		maxReq = 3
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHeader("User-Agent", userAgent),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	cli := &rateLimitedClient{
		inner:     NewOpenAIChatClient(opts...),
		semaphore: getOrCreateSemaphore(apiKey, maxReq),
	}
	misc.Debug("ForAPIKey: created client key=...%s maxRequest=%d", tailOf(apiKey, 6), maxReq)
	clientPool.m[apiKey] = cli
	return cli
}

func tailOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
