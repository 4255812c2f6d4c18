package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/chatrelay/client"
	"github.com/totegamma/chatrelay/didtoken"
)

var tracer = otel.Tracer("service")

const defaultMagicAPIURL = "https://api.magic.link"

type AuthConfig struct {
	SecretKey string
	TestMode  bool
	APIURL    string
}

// AuthService exchanges magic-link DID tokens for the email of their owner.
type AuthService struct {
	config AuthConfig
	client *client.Client
	now    func() time.Time
}

func NewAuthService(config AuthConfig, cl *client.Client) *AuthService {
	if config.APIURL == "" {
		config.APIURL = defaultMagicAPIURL
	}
	return &AuthService{
		config: config,
		client: cl,
		now:    time.Now,
	}
}

type userMetadata struct {
	Data struct {
		Email         string `json:"email"`
		Issuer        string `json:"issuer"`
		PublicAddress string `json:"public_address"`
	} `json:"data"`
}

// EmailByToken returns the email bound to token. A token that does not verify,
// or whose issuer is unknown to the provider, yields ok == false.
func (s *AuthService) EmailByToken(ctx context.Context, token string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.EmailByToken")
	defer span.End()

	parsed, err := didtoken.Parse(token)
	if err != nil {
		slog.WarnContext(ctx, "client connected with invalid token", slog.String("error", err.Error()), slog.String("module", "auth"))
		return "", false, nil
	}

	if !s.config.TestMode {
		if err := parsed.Validate(s.now()); err != nil {
			slog.WarnContext(ctx, "client connected with invalid token", slog.String("error", err.Error()), slog.String("module", "auth"))
			return "", false, nil
		}
	}

	endpoint := s.config.APIURL + "/v1/admin/auth/user/get?issuer=" + url.QueryEscape(parsed.Claims.Issuer)
	opts := client.Options{
		Header:   map[string]string{"X-Magic-Secret-Key": s.config.SecretKey},
		CacheKey: "magic:" + parsed.Claims.Issuer,
		CacheTTL: 5 * time.Minute,
	}

	var metadata userMetadata
	err = s.client.GetJSON(ctx, endpoint, opts, &metadata)
	if err != nil {
		var statusErr client.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode >= http.StatusBadRequest && statusErr.StatusCode < http.StatusInternalServerError {
			slog.WarnContext(ctx, "issuer rejected by metadata api", slog.Int("status", statusErr.StatusCode), slog.String("module", "auth"))
			return "", false, nil
		}
		span.RecordError(err)
		return "", false, errors.Wrap(err, "failed to get user metadata")
	}

	if metadata.Data.Email == "" {
		// the login may still be completing; ask again next time
		s.client.Forget(opts.CacheKey)
		return "", false, nil
	}
	return metadata.Data.Email, true, nil
}
