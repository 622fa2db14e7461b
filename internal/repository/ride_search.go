package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ecoride/carpool/internal/model"
)

// buildRideSearch assembles the public search query. Only published rides
// with a free seat are listed; city filters are case-insensitive through
// the column collation and the date filter covers one UTC day.
func buildRideSearch(q model.RideSearch) (string, []any) {
	var (
		where = []string{"status = ?", "seats_available > 0"}
		args  = []any{model.RidePublished}
	)
	if c := strings.TrimSpace(q.DepartureCity); c != "" {
		where = append(where, "departure_city = ?")
		args = append(args, c)
	}
	if c := strings.TrimSpace(q.ArrivalCity); c != "" {
		where = append(where, "arrival_city = ?")
		args = append(args, c)
	}
	if !q.Date.IsZero() {
		y, m, d := q.Date.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		where = append(where, "departure_at >= ?", "departure_at < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}

	query := "SELECT " + rideColumns + " FROM rides WHERE " + strings.Join(where, " AND ") +
		" ORDER BY departure_at, id"
	if q.PageSize > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.PageSize, (page-1)*q.PageSize)
	}
	return query, args
}

// SearchRides lists bookable rides matching q.
func (s *Store) SearchRides(ctx context.Context, q model.RideSearch) ([]model.Ride, error) {
	query, args := buildRideSearch(q)
	return scanRides(ctx, s.db, query, args...)
}
