package auth

import (
	"time"

	"jwtauth/config"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// accessClaims is the JWT payload of an access token.
type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// jwtCodec is a concrete implementation of the AccessTokenCodec interface using HS256 JWTs.
type jwtCodec struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

// NewJWTCodec is the constructor for jwtCodec.
func NewJWTCodec(cfg *config.Config) (service.AccessTokenCodec, error) {
	return newJWTCodec(cfg.Token, time.Now)
}

func newJWTCodec(tokenCfg config.TokenConfig, now func() time.Time) (*jwtCodec, error) {
	if tokenCfg.Secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if tokenCfg.AccessTokenTTL <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}

	codec := &jwtCodec{
		secret:    []byte(tokenCfg.Secret),
		issuer:    tokenCfg.Issuer,
		audience:  tokenCfg.Audience,
		accessTTL: tokenCfg.AccessTTL(),
		now:       now,
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(now),
	}
	if codec.issuer != "" {
		opts = append(opts, jwt.WithIssuer(codec.issuer))
	}
	if codec.audience != "" {
		opts = append(opts, jwt.WithAudience(codec.audience))
	}
	codec.parser = jwt.NewParser(opts...)

	return codec, nil
}

// Issue signs an access token whose subject is the account's username.
func (c *jwtCodec) Issue(account *entity.Account) (string, error) {
	issuedAt := c.now()

	claims := accessClaims{
		Role: account.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign access token")
	}

	return signed, nil
}

// Verify parses the token; the parser checks the signature before trusting any claim.
func (c *jwtCodec) Verify(tokenString string) (*service.AccessTokenClaims, error) {
	claims := &accessClaims{}

	_, err := c.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerrors.ErrTokenExpired.WrapMessage(err.Error())
		}

		return nil, domainerrors.ErrTokenInvalid.WrapMessage(err.Error())
	}

	role, ok := entity.ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return nil, domainerrors.ErrTokenInvalid.WrapMessage("access token is missing subject or role")
	}

	result := &service.AccessTokenClaims{
		Username: claims.Subject,
		Role:     role,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}

// AccessTokenTTL returns the configured access-token lifetime.
func (c *jwtCodec) AccessTokenTTL() time.Duration {
	return c.accessTTL
}
