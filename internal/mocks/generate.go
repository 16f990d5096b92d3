// Package mocks provides gomock implementations of the core repository ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockItemRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), "id").Return(item, nil)
package mocks

// ItemRepository: Create, GetByID, List, ListAllIDs, Update, Save, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=item_repository_mock.go github.com/target/mmk-items-api/internal/core ItemRepository

// BatchRunRepository: Create, GetByID, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=batch_run_repository_mock.go github.com/target/mmk-items-api/internal/core BatchRunRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/mmk-items-api/internal/core CacheRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/mmk-items-api/internal/core ReaperRepository
