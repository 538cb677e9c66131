package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/identity"
	"github.com/atoz-auto/autoshop-api/logger"
	"github.com/atoz-auto/autoshop-api/utils"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// TokenValidator verifies a raw bearer token. *identity.Resolver implements it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (interface{}, error)
}

type authOptions struct {
	queryParam string
}

// AuthOption customises RequireAuth.
type AuthOption func(*authOptions)

// WithQueryToken also accepts the token from a query parameter, for clients
// such as browsers opening a websocket that cannot set headers.
func WithQueryToken(param string) AuthOption {
	return func(o *authOptions) {
		o.queryParam = param
	}
}

// RequireAuth validates the bearer token and stores the resolved principal
// in the Gin context.
func RequireAuth(tokens TokenValidator, opts ...AuthOption) gin.HandlerFunc {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}

	extractor := jwtmiddleware.AuthHeaderTokenExtractor
	if o.queryParam != "" {
		extractor = jwtmiddleware.MultiTokenExtractor(
			jwtmiddleware.AuthHeaderTokenExtractor,
			jwtmiddleware.ParameterTokenExtractor(o.queryParam),
		)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		appErr := apperrors.ErrInvalidToken
		if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
			appErr = apperrors.ErrUnauthenticated
		}
		logger.FromContext(r.Context()).Debug().Err(err).Msg("rejected bearer token")

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(gin.H{
			"success": false,
			"error": gin.H{
				"code":    appErr.Code(),
				"message": appErr.Message(),
			},
		})
	}

	mw := jwtmiddleware.New(
		tokens.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		jwtmiddleware.WithTokenExtractor(extractor),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			claims, _ := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			principal, err := identity.PrincipalFromClaims(claims)
			if err != nil {
				utils.AbortWithError(c, err)
				return
			}

			passed = true
			c.Request = r.WithContext(logger.WithFields(r.Context(), map[string]any{
				"principal_kind": principal.Kind.String(),
				"principal_id":   principal.ID,
			}))
			SetPrincipal(c, principal)
			c.Next()
		}

		mw.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// RequireCustomer only lets customer principals through.
func RequireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := GetPrincipal(c)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if !p.IsCustomer() {
			utils.AbortWithError(c, apperrors.ErrForbidden.WithMessage("Customer access required"))
			return
		}
		c.Next()
	}
}

// RequireStaff only lets staff principals with a recognised role through.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := GetPrincipal(c)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if !p.IsStaff() || !p.Role.IsStaff() {
			utils.AbortWithError(c, apperrors.ErrForbidden.WithMessage("Staff access required"))
			return
		}
		c.Next()
	}
}

// SetPrincipal stores p on the Gin context.
func SetPrincipal(c *gin.Context, p identity.Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal extracts the authenticated principal from the Gin context
func GetPrincipal(c *gin.Context) (identity.Principal, error) {
	value, exists := c.Get(principalKey)
	if !exists {
		return identity.Principal{}, apperrors.ErrUnauthenticated
	}
	p, ok := value.(identity.Principal)
	if !ok || p.IsZero() {
		return identity.Principal{}, apperrors.ErrUnauthenticated
	}
	return p, nil
}
