package handlers

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/resourcehub/apiserver/internal/auth"
	"github.com/resourcehub/apiserver/internal/events"
	"github.com/resourcehub/apiserver/internal/services"
	"github.com/resourcehub/apiserver/internal/store"
	"github.com/resourcehub/apiserver/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-signing-secret"

// memUserRepo is an in-memory services.UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]types.User
	err   error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]types.User{}}
}

func (r *memUserRepo) Get(ctx context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.User{}, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.User{}, r.err
	}
	if _, exists := r.users[user.ID]; exists {
		return types.User{}, store.ErrAlreadyExists
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.User{}, r.err
	}
	if _, exists := r.users[user.ID]; !exists {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

// memResourceRepo is an in-memory services.ResourceRepository.
type memResourceRepo struct {
	mu        sync.Mutex
	resources map[uuid.UUID]types.Resource
}

func newMemResourceRepo() *memResourceRepo {
	return &memResourceRepo{resources: map[uuid.UUID]types.Resource{}}
}

func (r *memResourceRepo) List(ctx context.Context, offset, limit int) ([]types.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]types.Resource, 0, len(r.resources))
	for _, resource := range r.resources {
		all = append(all, resource)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	if offset >= len(all) {
		return []types.Resource{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memResourceRepo) Get(ctx context.Context, id uuid.UUID) (types.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resource, ok := r.resources[id]
	if !ok {
		return types.Resource{}, store.ErrNotFound
	}
	return resource, nil
}

func (r *memResourceRepo) Create(ctx context.Context, resource types.Resource) (types.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[resource.ID] = resource
	return resource, nil
}

func (r *memResourceRepo) Update(ctx context.Context, resource types.Resource) (types.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[resource.ID]; !exists {
		return types.Resource{}, store.ErrNotFound
	}
	r.resources[resource.ID] = resource
	return resource, nil
}

func (r *memResourceRepo) Upsert(ctx context.Context, resource types.Resource) (types.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[resource.ID] = resource
	return resource, nil
}

func (r *memResourceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[id]; !exists {
		return store.ErrNotFound
	}
	delete(r.resources, id)
	return nil
}

// recordingBroker captures published events.
type recordingBroker struct {
	mu        sync.Mutex
	published []events.Message
}

func (b *recordingBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, events.Message{Data: data, Attributes: attrs})
	return "msg-id", nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, channel string, handler events.Handler) error {
	return nil
}

func (b *recordingBroker) Close() error { return nil }

// testEnv assembles the API surface against in-memory stores, mirroring
// the server wiring.
type testEnv struct {
	router    *chi.Mux
	userRepo  *memUserRepo
	resources *memResourceRepo
	broker    *recordingBroker
	codec     *auth.Codec
	users     *services.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	userRepo := newMemUserRepo()
	resourceRepo := newMemResourceRepo()
	broker := &recordingBroker{}

	publisher := events.NewPublisher(broker, zap.NewNop())
	userService := services.NewUserService(userRepo, publisher)
	resourceService := services.NewResourceService(resourceRepo, publisher)

	codec := auth.NewCodec(testSecret, time.Hour)
	authenticator := auth.NewAuthenticator(userService)
	guard := NewGuard(codec, userService, zap.NewNop())

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/login", func(r chi.Router) {
			LoginRouter(r, authenticator, codec, zap.NewNop())
		})
		r.Route("/user", func(r chi.Router) {
			UserRouter(r, userService, guard)
		})
		r.Route("/resources", func(r chi.Router) {
			ResourceRouter(r, resourceService, nil, guard)
		})
	})

	return &testEnv{
		router:    router,
		userRepo:  userRepo,
		resources: resourceRepo,
		broker:    broker,
		codec:     codec,
		users:     userService,
	}
}

func (e *testEnv) seedUser(t *testing.T, id, password string, scopes ...string) types.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user := types.User{
		ID:             id,
		Status:         types.UserStatusActive,
		Scopes:         scopes,
		HashedPassword: hash,
	}
	e.userRepo.users[id] = user
	return user
}

func (e *testEnv) issueToken(t *testing.T, sub string, scopes ...string) string {
	t.Helper()
	token, err := e.codec.Issue(sub, scopes, time.Hour)
	require.NoError(t, err)
	return token
}
