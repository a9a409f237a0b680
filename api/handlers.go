package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courseloom/marketplace/models"
	"github.com/courseloom/marketplace/services"
	"github.com/courseloom/marketplace/utils"
)

type CheckoutStarter interface {
	CreateCheckoutSession(ctx context.Context, identity *services.Identity, courseID string) utils.Result[string]
}

type AccessEvaluator interface {
	Evaluate(identity *services.Identity, userID string, courseID string) utils.Result[*services.AccessDecision]
}

type CourseReader interface {
	FetchCourses() utils.Result[[]models.Course]
	FetchCourse(id string) utils.Result[*models.Course]
}

type checkoutRequest struct {
	CourseID string `json:"courseId"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

type accessResponse struct {
	HasAccess  bool   `json:"hasAccess"`
	AccessType string `json:"accessType,omitempty"`
}

type courseResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
	Price       float64 `json:"price"`
}

func courseToResponse(course *models.Course) courseResponse {
	return courseResponse{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
		ImageURL:    course.ImageURL,
		Price:       course.Price,
	}
}

type CheckoutHandler struct {
	checkouts CheckoutStarter
}

func NewCheckoutHandler(checkouts CheckoutStarter) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts}
}

// Create opens a provider-hosted checkout session for the caller.
// POST /api/checkout/sessions
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "courseId is required")
		return
	}

	result := h.checkouts.CreateCheckoutSession(r.Context(), IdentityFromContext(r.Context()), req.CourseID)
	if result.Failure() {
		writeResultError(w, result)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{URL: result.Value()})
}

type AccessHandler struct {
	access AccessEvaluator
}

func NewAccessHandler(access AccessEvaluator) *AccessHandler {
	return &AccessHandler{access: access}
}

// Show reports whether a user may open a course.
// GET /api/users/{userID}/access/{courseID}
func (h *AccessHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	courseID := chi.URLParam(r, "courseID")

	result := h.access.Evaluate(IdentityFromContext(r.Context()), userID, courseID)
	if result.Failure() {
		writeResultError(w, result)
		return
	}

	decision := result.Value()
	writeJSON(w, http.StatusOK, accessResponse{
		HasAccess:  decision.HasAccess,
		AccessType: decision.AccessType,
	})
}

type CourseHandler struct {
	courses CourseReader
}

func NewCourseHandler(courses CourseReader) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// Index lists the catalog in creation order.
// GET /api/courses
func (h *CourseHandler) Index(w http.ResponseWriter, r *http.Request) {
	result := h.courses.FetchCourses()
	if result.Failure() {
		writeResultError(w, result)
		return
	}

	responses := make([]courseResponse, 0, len(result.Value()))
	for i := range result.Value() {
		responses = append(responses, courseToResponse(&result.Value()[i]))
	}

	writeJSON(w, http.StatusOK, responses)
}

// Show returns a single course.
// GET /api/courses/{courseID}
func (h *CourseHandler) Show(w http.ResponseWriter, r *http.Request) {
	result := h.courses.FetchCourse(chi.URLParam(r, "courseID"))
	if result.Failure() {
		writeResultError(w, result)
		return
	}

	writeJSON(w, http.StatusOK, courseToResponse(result.Value()))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
