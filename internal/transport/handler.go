package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-flying-image/internal/capability"
	"go-flying-image/internal/config"
	apperrors "go-flying-image/internal/errors"
	"go-flying-image/internal/logger"
	"go-flying-image/internal/repository"
	"go-flying-image/internal/service"
	"go-flying-image/pkg/models"
)

// multipartOverhead is the body allowance for multipart framing on top of
// the file size limit
const multipartOverhead = 64 * 1024

// Dependencies are the collaborators of the HTTP layer. Metrics is optional.
type Dependencies struct {
	Auth       capability.Authenticator
	Accounts   service.AccountService
	Workspace  service.WorkspaceService
	Generation service.GenerationService
	Metrics    http.Handler
}

type handler struct {
	deps Dependencies
	cfg  *config.Config
	now  func() time.Time
}

func NewHandler(deps Dependencies, cfg *config.Config) (http.Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	h := &handler{deps: deps, cfg: cfg, now: time.Now}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(
		gin.Recovery(),
		requestLogger(),
		errorHandler(),
		h.session(),
	)

	r.GET("/health", healthCheck)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	r.GET("/", h.home)
	r.GET("/auth/signin", h.signIn)
	r.GET("/auth/callback", h.callback)
	r.POST("/auth/signout", h.signOut)

	user := r.Group("/", requireUser())
	user.POST("/upload", requestSizeLimiter(cfg.MaxUploadSize+multipartOverhead), h.upload)
	user.POST("/generate", h.generate)
	user.POST("/reset", h.reset)
	user.POST("/error/dismiss", h.dismissError)
	user.POST("/history/:index/select", h.selectHistory)
	user.GET("/subscribe", h.subscribe)

	return r, nil
}

func (h *handler) home(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		c.HTML(http.StatusOK, landingTemplate, nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	history := h.deps.Workspace.History(ctx, identity.UserID)
	page := workspacePage{
		Email:      identity.Email,
		Account:    h.deps.Accounts.Status(ctx, identity),
		SyncStatus: h.deps.Workspace.SyncStatus(identity.UserID),
		Workspace:  h.deps.Workspace.Snapshot(identity.UserID),
		History:    history,
		RenderedAt: h.now(),
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, workspaceTemplate, page)
}

func (h *handler) upload(c *gin.Context) {
	identity, _ := currentIdentity(c)

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		h.deps.Workspace.Upload(identity.UserID, file)
	case errors.Is(err, http.ErrMissingFile):
		// nothing selected
	case isBodyTooLarge(err):
		h.deps.Workspace.RejectUpload(identity.UserID, apperrors.NewInvalidImageError(apperrors.MsgInvalidImageSize, err))
	default:
		h.deps.Workspace.RejectUpload(identity.UserID, apperrors.NewInvalidImageError(apperrors.MsgInvalidImageType, err))
	}

	backToWorkspace(c)
}

func (h *handler) generate(c *gin.Context) {
	identity, _ := currentIdentity(c)

	if err := h.deps.Generation.Start(c.Request.Context(), identity); err != nil {
		if !errors.Is(err, service.ErrGenerationInFlight) {
			_ = c.Error(err)
			return
		}
		logger.WithField("user_id", identity.UserID).Info("Generation already in progress")
	}

	backToWorkspace(c)
}

func (h *handler) reset(c *gin.Context) {
	identity, _ := currentIdentity(c)

	if err := h.deps.Workspace.Reset(identity.UserID); err != nil {
		logger.WithFields(logrus.Fields{
			"user_id": identity.UserID,
			"error":   err.Error(),
		}).Info("Reset rejected")
	}

	backToWorkspace(c)
}

func (h *handler) dismissError(c *gin.Context) {
	identity, _ := currentIdentity(c)
	h.deps.Workspace.DismissError(identity.UserID)
	backToWorkspace(c)
}

func (h *handler) selectHistory(c *gin.Context) {
	identity, _ := currentIdentity(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid history index", err)
		return
	}

	if err := h.deps.Workspace.SelectHistory(c.Request.Context(), identity.UserID, index); err != nil {
		if errors.Is(err, repository.ErrHistoryEntryNotFound) {
			respondError(c, http.StatusNotFound, "history entry not found", err)
			return
		}
		_ = c.Error(err)
		return
	}

	backToWorkspace(c)
}

func (h *handler) subscribe(c *gin.Context) {
	identity, _ := currentIdentity(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	target, err := h.deps.Accounts.SubscribeURL(ctx, identity)
	if err != nil {
		respondError(c, http.StatusBadGateway, "subscription management unavailable", err)
		return
	}

	c.Redirect(http.StatusSeeOther, target)
}

func (h *handler) signIn(c *gin.Context) {
	returnTo := strings.TrimRight(h.cfg.PublicURL, "/") + "/auth/callback"
	c.Redirect(http.StatusFound, h.deps.Auth.SignInURL(returnTo))
}

func (h *handler) callback(c *gin.Context) {
	token := c.Query("token")

	identity, err := h.deps.Auth.Authenticate(token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "sign-in failed", err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.CookieName, identity.Token, int(h.cfg.Auth.SessionMaxAge.Seconds()), "/", "", h.cfg.Auth.CookieSecure, true)

	logger.WithField("user_id", identity.UserID).Info("User signed in")
	backToWorkspace(c)
}

func (h *handler) signOut(c *gin.Context) {
	h.clearSession(c)
	backToWorkspace(c)
}

func (h *handler) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.CookieName, "", -1, "/", "", h.cfg.Auth.CookieSecure, true)
}

func backToWorkspace(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "available",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}
