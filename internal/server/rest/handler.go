package rest

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/logging"
	"github.com/dmitrijs2005/recordapi/internal/server/auth"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/services"
)

// AuthService is the account API. *services.AuthService satisfies it.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string, meta models.ClientMeta) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, meta models.ClientMeta) (*models.TokenPair, error)
	Logout(ctx context.Context, principal *models.User, refreshToken string) error
	LogoutAll(ctx context.Context, principal *models.User) (int64, error)
	GetProfile(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	ListUsers(ctx context.Context, principal *models.User, page models.Page) ([]*models.User, int64, models.Page, error)
	GetUser(ctx context.Context, principal *models.User, id int64) (*models.User, error)
	AdminUpdateUser(ctx context.Context, principal *models.User, id int64, upd models.AdminUserUpdate) (*models.User, error)
	RevokeUserTokens(ctx context.Context, principal *models.User, id int64) (int64, error)
}

// DataService is the data record API. *services.DataService satisfies it.
type DataService interface {
	Create(ctx context.Context, principal *models.User, in services.DataInput) (*models.DataRecord, error)
	Get(ctx context.Context, principal *models.User, id int64) (*models.DataRecord, error)
	List(ctx context.Context, principal *models.User, f models.DataRecordFilter) (*services.RecordPage, error)
	Update(ctx context.Context, principal *models.User, id int64, upd models.DataRecordUpdate) (*models.DataRecord, error)
	Delete(ctx context.Context, principal *models.User, id int64) error
}

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options tune the middleware chain.
type Options struct {
	CORSOrigins   []string
	MaxBodyBytes  int64
	AuthRateLimit float64
	AuthRateBurst int
}

type Handler struct {
	auth   AuthService
	data   DataService
	tokens TokenVerifier
	db     Pinger
	log    logging.Logger
}

func NewHandler(a AuthService, d DataService, v TokenVerifier, db Pinger, log logging.Logger) *Handler {
	return &Handler{auth: a, data: d, tokens: v, db: db, log: log.With("module", "rest")}
}

var tagNameOnce sync.Once

// useJSONFieldNames makes validator report json names instead of Go field
// names.
func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// Router builds the gin engine with every route and middleware.
func (h *Handler) Router(m *Metrics, opts Options) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(requestID(), recovery(h.log), accessLog(h.log), m.middleware(), cors(opts.CORSOrigins))
	if opts.MaxBodyBytes > 0 {
		r.Use(maxBody(opts.MaxBodyBytes))
	}

	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.health)

	throttled := rateLimit(opts.AuthRateLimit, opts.AuthRateBurst)
	a := api.Group("/auth")
	a.POST("/register", throttled, h.register)
	a.POST("/login", throttled, h.login)
	a.POST("/refresh", throttled, h.refresh)

	authed := a.Group("", h.requireAuth())
	authed.POST("/logout", h.logout)
	authed.POST("/logout-all", h.logoutAll)
	authed.GET("/me", h.me)
	authed.PUT("/me", h.updateMe)
	authed.POST("/change-password", h.changePassword)

	admin := authed.Group("/users", h.requireSuperuser())
	admin.GET("", h.listUsers)
	admin.GET("/:id", h.getUser)
	admin.PUT("/:id", h.updateUser)
	admin.POST("/:id/revoke-tokens", h.revokeUserTokens)

	d := api.Group("/data")
	for _, p := range []string{"", "/"} {
		d.GET(p, h.optionalAuth(), h.listRecords)
		d.POST(p, h.requireAuth(), h.createRecord)
	}
	d.GET("/:id", h.optionalAuth(), h.getRecord)
	d.PUT("/:id", h.requireAuth(), h.updateRecord)
	d.DELETE("/:id", h.requireAuth(), h.deleteRecord)

	return r
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok"})
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, h.log, bindingError(err))
		return false
	}
	return true
}

func (h *Handler) bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		writeError(c, h.log, bindingError(err))
		return false
	}
	return true
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(c, h.log, common.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// page converts query values; an explicit limit below 1 is rejected rather
// than replaced by the default.
func (q pageQuery) page() (models.Page, error) {
	p := models.Page{Skip: q.Skip}
	if q.Limit != nil {
		if *q.Limit < 1 {
			return p, common.NewValidationError("limit", "must be between 1 and 1000")
		}
		p.Limit = *q.Limit
	}
	return p, nil
}

func clientMeta(c *gin.Context) models.ClientMeta {
	return models.ClientMeta{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP()}
}
