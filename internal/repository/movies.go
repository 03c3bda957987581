package repository

import (
	"context"

	"ticketshow/internal/models"
	"ticketshow/internal/search"
)

// MovieRepository reads movies from the Elasticsearch catalog index
type MovieRepository struct {
	es *search.ElasticsearchClient
}

func NewMovieRepository(es *search.ElasticsearchClient) *MovieRepository {
	return &MovieRepository{es: es}
}

// GetByID returns nil when the movie is not in the catalog
func (r *MovieRepository) GetByID(ctx context.Context, id string) (*models.Movie, error) {
	if r == nil || r.es == nil || id == "" {
		return nil, nil
	}
	return r.es.GetMovie(ctx, id)
}
