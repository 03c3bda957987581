package repository

import (
	"ticketshow/internal/database"
	"ticketshow/internal/search"
)

type Repositories struct {
	Shows    *ShowRepository
	Bookings *BookingRepository
	Users    *UserRepository
	Jobs     *JobRepository
	Movies   *MovieRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Shows:    NewShowRepository(db),
		Bookings: NewBookingRepository(db),
		Users:    NewUserRepository(db),
		Jobs:     NewJobRepository(db),
		Movies:   NewMovieRepository(nil),
	}
}

func NewRepositoriesWithElasticsearch(db *database.DB, es *search.ElasticsearchClient) *Repositories {
	repos := NewRepositories(db)
	repos.Movies = NewMovieRepository(es)
	return repos
}
