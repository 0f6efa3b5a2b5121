package echoapi

import (
	"context"
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const (
	jwtContextKey  = "userToken"
	contextUserKey = "user"
)

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
// Admin tokens carry the user's roles; parent tokens carry the roll numbers of their children.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`  // -> ADMIN DASHBOARD
	IsParent     bool     `json:"is_parent,omitempty"` // -> PARENT PORTAL
	Roles        []string `json:"roles,omitempty"`
	RollNos      []int    `json:"roll_nos,omitempty"`
}

func (c Claims) HasChild(rollNo int) bool {
	for _, r := range c.RollNos {
		if r == rollNo {
			return true
		}
	}
	return false
}

func standardClaims(conf *core.Config, subject string, now time.Time) jwt.StandardClaims {
	return jwt.StandardClaims{
		Issuer:    conf.AppName,
		Subject:   subject,
		Audience:  conf.AppName,
		ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
		IssuedAt:  now.Unix(),
	}
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: standardClaims(conf, usr.ID, now),
		OrigIssuedAt:   oriat,
		Username:       usr.Username,
		Email:          usr.Email,
		IsAdmin:        usr.IsAdmin(),
		Roles:          usr.Roles,
	}
}

func GetParentClaims(conf *core.Config, parent user.Parent, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: standardClaims(conf, parent.Email, now),
		OrigIssuedAt:   oriat,
		Email:          parent.Email,
		IsParent:       true,
		RollNos:        parent.RollNos,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func authenticate(ctx context.Context, uname, pwd string, svc *user.Service) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}
	if claims.IsParent {
		return user.User{}, errHttpForbidden
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) {
				if match := claims.Roles[i]; role == match {
					return true
				}
			}
		}
	}
	return false
}

// refreshToken issues a new token for the bearer of a still refreshable one.
// A parent's children are looked up again.
func refreshToken(ctx echo.Context, conf *core.Config, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	var newClaims *Claims
	if claims.IsParent {
		parent, err := svc.GetParent(ctx.Request().Context(), claims.Email)
		if err != nil {
			if core.IsNotFound(err) {
				return "", errAccountDeactivated
			}
			return "", errors.Wrap(err, "getting parent")
		}
		newClaims = GetParentClaims(conf, parent, claims.OrigIssuedAt)
	} else {
		usr, err := getContextUser(ctx, svc, claims)
		if err != nil {
			return "", errors.Wrap(err, "getting context user")
		}
		// check if user is still active
		if !usr.IsActive {
			return "", errAccountDeactivated
		}
		newClaims = GetUserClaims(conf, usr, claims.OrigIssuedAt)
	}

	token, err := GenerateToken(conf, newClaims)
	return token, errors.Wrap(err, "generating token")
}
