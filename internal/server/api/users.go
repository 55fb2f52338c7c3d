package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateMeRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	Password    *string `json:"password"`
}

type userResponse struct {
	ID          string                  `json:"id"`
	Email       string                  `json:"email"`
	PhoneNumber string                  `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	Accounts    []models.AccountSummary `json:"accounts"`
}

func newUserResponse(u *models.User) userResponse {
	resp := userResponse{
		ID:          u.ID,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
		Accounts:    make([]models.AccountSummary, 0, len(u.Accounts)),
	}
	for i := range u.Accounts {
		resp.Accounts = append(resp.Accounts, u.Accounts[i].Summary())
	}
	return resp
}

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", common.ErrValidation, err)
	}
	return nil
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}

	u, err := s.users.Register(c.Request.Context(), req.Email, req.Password, req.PhoneNumber)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": u.ID, "email": u.Email})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}

	token, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, token, int(s.opts.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.users.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u))
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}

	u, err := s.users.UpdateProfile(c.Request.Context(), currentUserID(c), services.ProfileUpdate{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u))
}
