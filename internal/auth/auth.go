package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/blogplatform/internal/web"
)

const UserCtxKey web.ContextKey = "user_data"

var (
	NotAuthenticatesUser = xerrors.Message("Not authenticated user")
	ErrInvalidToken      = xerrors.Message("Token is invalid or expired")
	ErrWrongTokenType    = xerrors.Message("Token has wrong type")
	ErrTokenRevoked      = xerrors.Message("Token is blacklisted")
)

type Options struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Blacklist  Blacklist
}

// Auth issues and validates HS256 access/refresh pairs and carries the
// authenticated user through the request context.
type Auth struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

func New(opts Options) *Auth {
	a := &Auth{
		secret:     []byte(opts.Secret),
		issuer:     opts.Issuer,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		blacklist:  opts.Blacklist,
		now:        time.Now,
	}
	if a.accessTTL == 0 {
		a.accessTTL = 60 * time.Minute
	}
	if a.refreshTTL == 0 {
		a.refreshTTL = 7 * 24 * time.Hour
	}
	if a.blacklist == nil {
		a.blacklist = NewMemoryBlacklist()
	}
	return a
}

func (auth *Auth) IssuePair(user *User) (TokenPair, error) {
	access, err := auth.generateToken(user, AccessToken, auth.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := auth.generateToken(user, RefreshToken, auth.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (auth *Auth) generateToken(user *User, tokenType TokenType, duration time.Duration) (string, error) {
	now := auth.now()
	claim := UserClaim{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    auth.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	signedString, err := token.SignedString(auth.secret)
	if err != nil {
		return "", xerrors.New(err)
	}
	return signedString, nil
}

func (auth *Auth) parse(tokenString string) (*UserClaim, error) {
	parsedToken, err := jwt.ParseWithClaims(tokenString, &UserClaim{}, func(token *jwt.Token) (interface{}, error) {
		return auth.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(auth.now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, xerrors.Newf("%w: %v", ErrInvalidToken, err)
	}

	claim, ok := parsedToken.Claims.(*UserClaim)
	if !ok || !parsedToken.Valid {
		return nil, xerrors.New(ErrInvalidToken)
	}
	return claim, nil
}

// Authenticate validates an access token.
func (auth *Auth) Authenticate(tokenString string) (*UserClaim, error) {
	claim, err := auth.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claim.TokenType != AccessToken {
		return nil, xerrors.New(ErrWrongTokenType)
	}
	return claim, nil
}

// ParseRefresh validates a refresh token that has not been revoked.
func (auth *Auth) ParseRefresh(ctx context.Context, tokenString string) (*UserClaim, error) {
	claim, err := auth.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claim.TokenType != RefreshToken {
		return nil, xerrors.New(ErrWrongTokenType)
	}
	if err := auth.checkRevoked(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Verify accepts either token type.
func (auth *Auth) Verify(ctx context.Context, tokenString string) (*UserClaim, error) {
	claim, err := auth.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if err := auth.checkRevoked(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

func (auth *Auth) checkRevoked(ctx context.Context, claim *UserClaim) error {
	revoked, err := auth.blacklist.IsRevoked(ctx, claim.ID)
	if err != nil {
		return xerrors.New(err)
	}
	if revoked {
		return xerrors.New(ErrTokenRevoked)
	}
	return nil
}

// Revoke blacklists the token until its natural expiry.
func (auth *Auth) Revoke(ctx context.Context, claim *UserClaim) error {
	until := auth.now().Add(auth.refreshTTL)
	if claim.ExpiresAt != nil {
		until = claim.ExpiresAt.Time
	}
	if err := auth.blacklist.Revoke(ctx, claim.ID, until); err != nil {
		return xerrors.New(err)
	}
	return nil
}

func IsTokenError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrWrongTokenType) || errors.Is(err, ErrTokenRevoked)
}

func (auth *Auth) GetAuthenticatedUser(r *http.Request) (*User, error) {
	user, ok := web.GetValueFromContext[*User](r, UserCtxKey)
	if !ok {
		return nil, NotAuthenticatesUser
	}

	return user, nil
}

func (auth *Auth) SetAuthenticatedUser(r *http.Request, user *User) *http.Request {
	return web.AddValueToContext(r, UserCtxKey, user)
}

func (auth *Auth) IsUserAuthenticated(r *http.Request) bool {
	_, err := auth.GetAuthenticatedUser(r)
	return err == nil
}
