package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const (
	authScheme      = "Bearer"
	contextActorKey = "actor"
	audience        = "Darasa"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	SchoolID string    `json:"school_id"`
	Role     core.Role `json:"role"`
	Name     string    `json:"name,omitempty"`
}

// Actor returns the identity the claims were issued to.
func (c Claims) Actor() core.Actor {
	return core.Actor{ID: c.Subject, Name: c.Name, SchoolID: c.SchoolID, Role: c.Role}
}

// TokenIssuer signs & verifies HS256 tokens.
type TokenIssuer struct {
	issuer     string
	secretKey  []byte
	expiration time.Duration
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		issuer:     conf.AppName,
		secretKey:  []byte(conf.SecretKey),
		expiration: conf.Server.JWTExpirationDelta,
	}
}

// GenerateToken generates a signed JWT token string representing the actor.
func (ti *TokenIssuer) GenerateToken(actor core.Actor) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   actor.ID,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SchoolID: actor.SchoolID,
		Role:     actor.Role,
		Name:     actor.Name,
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *TokenIssuer) parse(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return ti.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if !claims.VerifyIssuer(ti.issuer, true) || !claims.VerifyAudience(audience, true) {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Middleware authenticates the request's bearer token and stores its actor in the echo.Context.
func (ti *TokenIssuer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			prefix := authScheme + " "
			if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
				return errMissingToken
			}

			claims, err := ti.parse(auth[len(prefix):])
			if err != nil {
				return err
			}
			ctx.Set(contextActorKey, claims.Actor())
			return next(ctx)
		}
	}
}

func getContextActor(ctx echo.Context) (core.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(core.Actor); ok {
		return actor, nil
	}
	return core.Actor{}, errUnauthorized
}

// rolesMiddleware only lets actors with one of the roles through.
func rolesMiddleware(roles ...core.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return rolesMiddleware(core.RoleAdmin)
}

func markerMiddleware() echo.MiddlewareFunc {
	return rolesMiddleware(core.RoleAdmin, core.RoleTeacher)
}

// LoginResponse is returned by every login & registration endpoint.
type LoginResponse struct {
	Token   string      `json:"token"`
	Profile interface{} `json:"profile"`
}
