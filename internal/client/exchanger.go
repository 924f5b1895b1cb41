package client

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/models"
)

// RefreshExchanger trades a refresh token for a new token pair. It has its
// own Dispatcher with no token source and no refresher, so a 401 from the
// exchange can never start another refresh.
type RefreshExchanger struct {
	bare *Dispatcher
}

func NewRefreshExchanger(cfg Config, log *zap.SugaredLogger) (*RefreshExchanger, error) {
	bare, err := NewDispatcher(cfg, nil, nil, log)
	if err != nil {
		return nil, err
	}
	return &RefreshExchanger{bare: bare}, nil
}

func (e *RefreshExchanger) Exchange(ctx context.Context, refreshToken string) (models.AuthResponse, error) {
	return Call[models.AuthResponse](ctx, e.bare, Request{
		Method:   http.MethodPost,
		Path:     PathRefreshToken,
		JSON:     models.RefreshTokenRequest{RefreshToken: refreshToken},
		SkipAuth: true,
	})
}
