package handler

import (
	"time"

	"github.com/ecoride/carpool/internal/model"
)

type userResp struct {
	ID      uint64       `json:"id"`
	Email   string       `json:"email,omitempty"`
	Pseudo  string       `json:"pseudo"`
	Status  string       `json:"status"`
	Roles   []model.Role `json:"roles"`
	Credits *int64       `json:"credits,omitempty"`
}

// toUser hides the balance unless private is set.
func toUser(u *model.User, private bool) userResp {
	out := userResp{ID: u.ID, Pseudo: u.Pseudo, Status: string(u.Status), Roles: u.Roles.List()}
	if private {
		credits := u.Credits
		out.Email = u.Email
		out.Credits = &credits
	}
	return out
}

type vehicleResp struct {
	ID    uint64 `json:"id"`
	Brand string `json:"brand"`
	Model string `json:"model"`
	Plate string `json:"plate"`
	Seats int    `json:"seats"`
}

func toVehicle(v *model.Vehicle) vehicleResp {
	return vehicleResp{ID: v.ID, Brand: v.Brand, Model: v.Model, Plate: v.Plate, Seats: v.Seats}
}

type flagResp struct {
	Kind        model.FlagKind `json:"kind"`
	Description string         `json:"description"`
}

type moderationResp struct {
	Flags    []flagResp `json:"flags"`
	Decision string     `json:"decision,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

type rideResp struct {
	ID             uint64           `json:"id"`
	DriverID       uint64           `json:"driver_id"`
	VehicleID      uint64           `json:"vehicle_id"`
	DepartureCity  string           `json:"departure_city"`
	ArrivalCity    string           `json:"arrival_city"`
	DepartureAt    time.Time        `json:"departure_at"`
	ArrivalAt      time.Time        `json:"arrival_at"`
	Price          int64            `json:"price"`
	SeatsOffered   int              `json:"seats_offered"`
	SeatsAvailable int              `json:"seats_available"`
	Status         model.RideStatus `json:"status"`
	Notes          string           `json:"notes,omitempty"`
	CancelReason   string           `json:"cancel_reason,omitempty"`
	Moderation     *moderationResp  `json:"moderation,omitempty"`
}

// toRide includes the moderation payload only for the driver and staff.
func toRide(r *model.Ride, withModeration bool) rideResp {
	out := rideResp{
		ID:             r.ID,
		DriverID:       r.DriverID,
		VehicleID:      r.VehicleID,
		DepartureCity:  r.DepartureCity,
		ArrivalCity:    r.ArrivalCity,
		DepartureAt:    r.DepartureAt,
		ArrivalAt:      r.ArrivalAt,
		Price:          r.Price,
		SeatsOffered:   r.SeatsOffered,
		SeatsAvailable: r.SeatsAvailable,
		Status:         r.Status,
		Notes:          r.Notes,
		CancelReason:   r.CancelReason,
	}
	if withModeration {
		m := &moderationResp{
			Flags:    make([]flagResp, 0, len(r.Moderation.Flags)),
			Decision: string(r.Moderation.Decision),
			Reason:   r.Moderation.Reason,
		}
		for _, f := range r.Moderation.Flags {
			m.Flags = append(m.Flags, flagResp{Kind: f.Kind(), Description: f.Describe()})
		}
		out.Moderation = m
	}
	return out
}

func toRides(rs []model.Ride, withModeration bool) []rideResp {
	out := make([]rideResp, 0, len(rs))
	for i := range rs {
		out = append(out, toRide(&rs[i], withModeration))
	}
	return out
}

type participationResp struct {
	ID              uint64                    `json:"id"`
	RideID          uint64                    `json:"ride_id"`
	PassengerID     uint64                    `json:"passenger_id"`
	Status          model.ParticipationStatus `json:"status"`
	RegisteredAt    time.Time                 `json:"registered_at"`
	Confirmed       bool                      `json:"confirmed"`
	ReviewSubmitted bool                      `json:"review_submitted"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
}

func toParticipation(p *model.Participation) participationResp {
	return participationResp{
		ID:              p.ID,
		RideID:          p.RideID,
		PassengerID:     p.PassengerID,
		Status:          p.Status,
		RegisteredAt:    p.RegisteredAt,
		Confirmed:       p.ConfirmedByPassenger,
		ReviewSubmitted: p.ReviewSubmitted,
		CancelledAt:     p.CancelledAt,
	}
}

type reviewResp struct {
	ID            uint64             `json:"id"`
	RideID        uint64             `json:"ride_id"`
	AuthorID      uint64             `json:"author_id"`
	SubjectID     uint64             `json:"subject_id"`
	Rating        int                `json:"rating"`
	Comment       string             `json:"comment"`
	Status        model.ReviewStatus `json:"status"`
	RejectReason  string             `json:"reject_reason,omitempty"`
	DisputeReason string             `json:"dispute_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func toReview(r *model.Review) reviewResp {
	return reviewResp{
		ID:            r.ID,
		RideID:        r.RideID,
		AuthorID:      r.AuthorID,
		SubjectID:     r.SubjectID,
		Rating:        r.Rating,
		Comment:       r.Comment,
		Status:        r.Status,
		RejectReason:  r.RejectReason,
		DisputeReason: r.DisputeReason,
		CreatedAt:     r.CreatedAt,
	}
}
