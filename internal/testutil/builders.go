package testutil

import (
	"fmt"

	"github.com/target/mmk-items-api/internal/domain/model"
)

// ItemRequestBuilder provides a fluent interface for building CreateItemRequest objects for testing.
type ItemRequestBuilder struct {
	req *model.CreateItemRequest
}

// NewItemRequest creates a builder with values that pass validation.
func NewItemRequest() *ItemRequestBuilder {
	return &ItemRequestBuilder{
		req: &model.CreateItemRequest{
			Name:        "Test item",
			Description: "created by tests",
			Status:      model.ItemStatusPending,
			Email:       "owner@example.com",
		},
	}
}

func (b *ItemRequestBuilder) WithName(name string) *ItemRequestBuilder {
	b.req.Name = name
	return b
}

func (b *ItemRequestBuilder) WithStatus(status string) *ItemRequestBuilder {
	b.req.Status = status
	return b
}

func (b *ItemRequestBuilder) WithEmail(email string) *ItemRequestBuilder {
	b.req.Email = email
	return b
}

func (b *ItemRequestBuilder) WithDescription(desc string) *ItemRequestBuilder {
	b.req.Description = desc
	return b
}

// Build returns the assembled request.
func (b *ItemRequestBuilder) Build() *model.CreateItemRequest {
	cp := *b.req
	return &cp
}

// NumberedItemRequests returns n valid requests named "<prefix> 1".."<prefix> n".
func NumberedItemRequests(prefix string, n int) []*model.CreateItemRequest {
	out := make([]*model.CreateItemRequest, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, NewItemRequest().
			WithName(fmt.Sprintf("%s %d", prefix, i)).
			WithEmail(fmt.Sprintf("owner%d@example.com", i)).
			Build())
	}
	return out
}
