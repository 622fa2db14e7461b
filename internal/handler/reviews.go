package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/review"
)

// ReviewHandler accepts reviews from passengers and serves ratings.
type ReviewHandler struct {
	Reviews *review.Gate
}

func NewReviewHandler(g *review.Gate) *ReviewHandler {
	if g == nil {
		panic("nil review gate passed to NewReviewHandler")
	}
	return &ReviewHandler{Reviews: g}
}

type reviewReq struct {
	SubjectID uint64 `json:"subject_id"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type disputeReq struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// Submit handles POST /v1/rides/:id/reviews. Without subject_id the
// review is about the driver.
func (h *ReviewHandler) Submit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	rideID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid ride id")
	}
	var req reviewReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reviews.Submit(ctx, uid, rideID, review.Submission{
		SubjectID: req.SubjectID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toReview(r))
}

// Dispute handles POST /v1/reviews/:id/dispute.
func (h *ReviewHandler) Dispute(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	reviewID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid review id")
	}
	var req disputeReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reviews.Dispute(ctx, uid, reviewID, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toReview(r))
}

// Rating handles GET /v1/users/:id/rating.
func (h *ReviewHandler) Rating(c echo.Context) error {
	userID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sum, err := h.Reviews.Rating(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}
