package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/mmk-items-api/internal/domain/model"
)

// ErrInvalidFilter wraps JMESPath compile and evaluation errors.
var ErrInvalidFilter = errors.New("invalid filter expression")

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// ItemFilterService evaluates JMESPath expressions over item lists, e.g.
// "[?status=='PROCESSED'].email".
type ItemFilterService struct {
	eval JMESPathEvaluator
}

// NewItemFilterService constructs an ItemFilterService. A nil evaluator uses go-jmespath.
func NewItemFilterService(eval JMESPathEvaluator) *ItemFilterService {
	if eval == nil {
		eval = jmespathLibEvaluator{}
	}
	return &ItemFilterService{eval: eval}
}

// Apply evaluates expr against the JSON form of items. An empty expression
// returns items unchanged.
func (s *ItemFilterService) Apply(expr string, items []*model.Item) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return items, nil
	}
	if err := s.eval.Validate(expr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	doc, err := toJSONValue(items)
	if err != nil {
		return nil, err
	}
	out, err := s.eval.Evaluate(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return out, nil
}

// toJSONValue converts items to the generic []any / map[string]any form
// JMESPath operates on, so field names match the API's JSON.
func toJSONValue(items []*model.Item) (any, error) {
	if items == nil {
		items = []*model.Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return doc, nil
}
