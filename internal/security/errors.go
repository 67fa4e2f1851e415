package security

import (
	"errors"
	"fmt"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

var (
	ErrMissingToken    = fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	ErrInvalidIssuer   = fmt.Errorf("%w: invalid issuer", domain.ErrUnauthenticated)
	ErrInvalidAudience = fmt.Errorf("%w: invalid audience", domain.ErrUnauthenticated)
	ErrTokenExpired    = fmt.Errorf("%w: token expired or not valid yet", domain.ErrUnauthenticated)
	ErrInvalidSubject  = fmt.Errorf("%w: invalid subject", domain.ErrUnauthenticated)
)

var errNoKey = errors.New("no public key configured")
