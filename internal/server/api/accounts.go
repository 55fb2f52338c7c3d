package api

import (
	"net/http"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": s.accounts.Providers()})
}

func (s *Server) handleListAccounts(c *gin.Context) {
	list, err := s.accounts.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleAddAccount(c *gin.Context) {
	authURL, _, err := s.accounts.Initiate(c.Request.Context(), currentUserID(c), c.Param("provider"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// handleCallback is reached by the user's browser when the authorization
// server redirects back, so it answers in plain text.
func (s *Server) handleCallback(c *gin.Context) {
	provider := c.Param("provider")
	account, err := s.accounts.Finalize(c.Request.Context(), provider, providers.CallbackParams{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	})
	if err != nil {
		switch common.Kind(err) {
		case common.KindOAuthExchange, common.KindUnknownProvider, common.KindValidation:
			c.String(http.StatusBadRequest, "Linking failed: %v", err)
		default:
			s.logger.Error(c.Request.Context(), "account linking failed", "provider", provider, "error", err)
			c.String(http.StatusInternalServerError, "Linking failed: internal error")
		}
		return
	}

	c.String(http.StatusOK, "Linked %s account %s. You can close this window.", account.Provider, account.Label)
}

func (s *Server) handleRemoveAccount(c *gin.Context) {
	if err := s.accounts.Remove(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
