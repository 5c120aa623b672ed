package ruleio

import (
	"context"

	"github.com/virtualpaper/console/internal/domain"
)

// FetchPageSize is the page size used when collecting every rule
const FetchPageSize = 100

// FetchAll pages through the provider until every rule is collected
func FetchAll(ctx context.Context, provider domain.DataProvider) ([]domain.Rule, error) {
	var all []domain.Rule
	for page := 1; ; page++ {
		var batch []domain.Rule
		total, err := provider.GetList(ctx, domain.ResourceRules, domain.ListParams{
			Pagination: domain.Pagination{Page: page, PerPage: FetchPageSize},
			Sort:       domain.Sort{Field: "id", Order: "ASC"},
		}, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) == 0 || len(all) >= total {
			return all, nil
		}
	}
}
