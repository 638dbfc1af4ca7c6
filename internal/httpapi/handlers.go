package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mentorbridge/mentorbridge"
)

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	in := mentorbridge.RegisterRequest{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		College:   req.College,
		Bio:       req.Bio,
		Skills:    req.Skills,
		Expertise: req.Expertise,
	}
	if req.YearsExperience != nil {
		in.YearsExperience = *req.YearsExperience
	}

	tok, user, err := h.engine.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAuthResponse(tok, user))
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	tok, user, err := h.engine.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuthResponse(tok, user))
}

func (h *handler) me(c *gin.Context) {
	user, err := h.engine.Me(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *handler) revokeAll(c *gin.Context) {
	if err := h.engine.RevokeAll(c.Request.Context(), identity(c).UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) getUser(c *gin.Context) {
	user, err := h.engine.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *handler) updateProfile(c *gin.Context) {
	var req profileRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.engine.UpdateProfile(c.Request.Context(), identity(c), mentorbridge.ProfileUpdate{
		Name:            req.Name,
		College:         req.College,
		Bio:             req.Bio,
		Skills:          req.Skills,
		Expertise:       req.Expertise,
		YearsExperience: req.YearsExperience,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *handler) searchMentors(c *gin.Context) {
	filter := mentorbridge.MentorFilter{
		Search:    c.Query("search"),
		Expertise: c.Query("expertise"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, mentorbridge.ErrInvalidInput)
			return
		}
		filter.Limit = n
	}

	mentors, err := h.engine.SearchMentors(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(mentors, newUserResponse))
}

func (h *handler) listSessions(c *gin.Context) {
	views, err := h.engine.ListSessions(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(views, newSessionResponse))
}

func (h *handler) bookSession(c *gin.Context) {
	var req bookingRequest
	if !h.bind(c, &req) {
		return
	}

	view, err := h.engine.BookSession(c.Request.Context(), identity(c), mentorbridge.BookingRequest{
		MentorID: req.MentorID,
		Date:     req.Date,
		Time:     req.Time,
		Notes:    req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSessionResponse(*view))
}

func (h *handler) getSession(c *gin.Context) {
	view, err := h.engine.GetSession(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(*view))
}

// transitionSession takes the target from a JSON body or, for older
// clients, the ?status= query parameter.
func (h *handler) transitionSession(c *gin.Context) {
	var req statusRequest
	if c.Request.ContentLength != 0 {
		if !h.bind(c, &req) {
			return
		}
	}
	target := strings.TrimSpace(req.Status)
	if target == "" {
		target = strings.TrimSpace(c.Query("status"))
	}
	if target == "" {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail: "request validation failed",
			Code:   string(mentorbridge.KindInvalidInput),
			Fields: map[string]string{"status": fieldMessages["required"]},
		})
		return
	}

	view, err := h.engine.TransitionSession(c.Request.Context(), identity(c), c.Param("id"), target)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(*view))
}

func (h *handler) listMessages(c *gin.Context) {
	msgs, err := h.engine.ListMessages(c.Request.Context(), identity(c), c.Query("with"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(msgs, newMessageResponse))
}

func (h *handler) sendMessage(c *gin.Context) {
	var req messageRequest
	if !h.bind(c, &req) {
		return
	}

	msg, err := h.engine.SendMessage(c.Request.Context(), identity(c), req.ToUserID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMessageResponse(mentorbridge.MessageView{Message: msg}))
}

func (h *handler) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if !h.bind(c, &req) {
		return
	}

	fb, err := h.engine.SubmitFeedback(c.Request.Context(), identity(c), mentorbridge.FeedbackRequest{
		SessionID: req.SessionID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFeedbackResponse(mentorbridge.FeedbackView{Feedback: fb}))
}

func (h *handler) listFeedback(c *gin.Context) {
	list, err := h.engine.ListFeedback(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(list, newFeedbackResponse))
}

func (h *handler) stats(c *gin.Context) {
	s, err := h.engine.Stats(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatsResponse(s))
}
