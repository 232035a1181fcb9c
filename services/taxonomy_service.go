package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
)

const defaultPopularTags = 20

// TaxonomyService exposes the read-only category and tag catalogue.
type TaxonomyService interface {
	ListCategories(ctx context.Context) ([]models.ServerCategory, error)
	GetCategory(ctx context.Context, slug string) (*models.ServerCategory, error)
	ListTags(ctx context.Context) ([]models.ServerTag, error)
	PopularTags(ctx context.Context, limit int) ([]models.ServerTag, error)
	GetTag(ctx context.Context, slug string) (*models.ServerTag, error)
}

type taxonomyService struct {
	repo repositories.TaxonomyRepository
}

func NewTaxonomyService(repo repositories.TaxonomyRepository) TaxonomyService {
	return &taxonomyService{repo: repo}
}

func (s *taxonomyService) ListCategories(ctx context.Context) ([]models.ServerCategory, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *taxonomyService) GetCategory(ctx context.Context, slug string) (*models.ServerCategory, error) {
	category, err := s.repo.GetCategoryBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category %q: %w", slug, err)
	}
	return category, nil
}

func (s *taxonomyService) ListTags(ctx context.Context) ([]models.ServerTag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (s *taxonomyService) PopularTags(ctx context.Context, limit int) ([]models.ServerTag, error) {
	if limit < 0 || limit > MaxLimit {
		return nil, newValidationError(map[string]string{"limit": fmt.Sprintf("must be between 1 and %d", MaxLimit)})
	}
	if limit == 0 {
		limit = defaultPopularTags
	}
	tags, err := s.repo.PopularTags(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list popular tags: %w", err)
	}
	return tags, nil
}

func (s *taxonomyService) GetTag(ctx context.Context, slug string) (*models.ServerTag, error) {
	tag, err := s.repo.GetTagBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, repositories.ErrTagNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag %q: %w", slug, err)
	}
	return tag, nil
}
