package notify

import (
	"fmt"

	"github.com/ecoride/carpool/internal/model"
)

const when = "02/01/2006 15:04"

// Render builds the message shown to recipient for ev.
func Render(ev model.Event, recipient uint64) string {
	d := ev.Data
	route := fmt.Sprintf("%s → %s", d.DepartureCity, d.ArrivalCity)
	if !d.DepartureAt.IsZero() {
		route += " on " + d.DepartureAt.Format(when)
	}
	switch ev.Type {
	case model.EventRidePublished:
		return fmt.Sprintf("Your ride %s is published.", route)
	case model.EventRideFlagged:
		return fmt.Sprintf("Your ride %s is awaiting moderation.", route)
	case model.EventRideRejected:
		return fmt.Sprintf("Your ride %s was rejected: %s", route, d.Reason)
	case model.EventRideStarted:
		return fmt.Sprintf("Ride %s has started.", route)
	case model.EventRideCompleted:
		return fmt.Sprintf("Ride %s is completed. You can now leave a review.", route)
	case model.EventRideCancelled:
		msg := fmt.Sprintf("Ride %s was cancelled by the driver. Your credits were refunded.", route)
		if d.Reason != "" {
			msg += " Reason: " + d.Reason
		}
		return msg
	case model.EventBookingCreated:
		if recipient == ev.ActorID {
			return fmt.Sprintf("Booking confirmed for %s. %d credits are on hold.", route, d.Amount)
		}
		return fmt.Sprintf("A passenger booked a seat on your ride %s.", route)
	case model.EventBookingCancelled:
		if recipient == ev.ActorID {
			return fmt.Sprintf("Your booking for %s is cancelled. %d credits were refunded.", route, d.Amount)
		}
		return fmt.Sprintf("A passenger cancelled their seat on your ride %s.", route)
	case model.EventReviewSubmitted:
		return fmt.Sprintf("Your review (%d/5) was received and awaits moderation.", d.Rating)
	case model.EventReviewApproved:
		return fmt.Sprintf("A review (%d/5) was approved and is now public.", d.Rating)
	case model.EventReviewRejected:
		return fmt.Sprintf("Your review was rejected: %s", d.Reason)
	case model.EventReviewDisputed:
		return "A review you wrote is disputed and back in moderation."
	default:
		return fmt.Sprintf("Update: %s", ev.Type)
	}
}
