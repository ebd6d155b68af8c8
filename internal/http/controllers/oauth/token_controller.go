// Package oauth - TokenController handles POST /oauth/token
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/catalystwells/grantd/internal/metrics"
	"github.com/catalystwells/grantd/internal/observability/logger"

	svc "github.com/catalystwells/grantd/internal/http/services/oauth"
)

const maxTokenBody = 64 << 10

// TokenController handles the OAuth2 token endpoint.
type TokenController struct {
	service svc.TokenService
}

// NewTokenController creates the controller.
func NewTokenController(s svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

// params son los campos del body, ya normalizados a string.
type params map[string]string

// get devuelve el valor tal cual llegó: secrets y verifiers no se tocan.
func (p params) get(k string) string { return p[k] }

// Token handles POST /oauth/token
// Implements: Authorization Code (PKCE o secret), Refresh Token, Client Credentials grants.
// Es el único catch boundary: panics y errores no-OAuth salen como server_error.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	grantType := ""
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in token endpoint", logger.GrantType(grantType), logger.Any("panic", rec))
			c.writeGrantError(w, grantType, http.StatusInternalServerError, "server_error", fmt.Sprint(rec))
		}
	}()

	// Method check
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		c.writeGrantError(w, "", http.StatusMethodNotAllowed, "invalid_request", "Only POST method is allowed")
		return
	}

	// Limit body size (64KB for OAuth forms)
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenBody)

	p, err := parseParams(r)
	if err != nil {
		log.Warn("failed to parse token request body", logger.Err(err))
		c.writeGrantError(w, "", http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	grantType = strings.TrimSpace(p.get("grant_type"))
	log = log.With(logger.GrantType(grantType))
	ctx = logger.ToContext(ctx, log)

	var resp *svc.TokenResponse
	switch grantType {
	case svc.GrantAuthorizationCode:
		resp, err = c.service.ExchangeAuthorizationCode(ctx, svc.AuthCodeRequest{
			Code:         p.get("code"),
			ClientID:     p.get("client_id"),
			ClientSecret: p.get("client_secret"),
			RedirectURI:  p.get("redirect_uri"),
			CodeVerifier: p.get("code_verifier"),
		})

	case svc.GrantRefreshToken:
		resp, err = c.service.ExchangeRefreshToken(ctx, svc.RefreshTokenRequest{
			RefreshToken: p.get("refresh_token"),
			ClientID:     p.get("client_id"),
			ClientSecret: p.get("client_secret"),
			Scope:        p.get("scope"),
		})

	case svc.GrantClientCredentials:
		resp, err = c.service.ExchangeClientCredentials(ctx, svc.ClientCredentialsRequest{
			ClientID:     p.get("client_id"),
			ClientSecret: p.get("client_secret"),
			Scope:        p.get("scope"),
		})

	default:
		c.writeGrantError(w, grantType, http.StatusBadRequest, "unsupported_grant_type", "Grant type not supported")
		return
	}

	if err != nil {
		c.handleServiceError(ctx, w, grantType, err)
		return
	}

	// Success: write token response with no-cache headers
	c.writeTokenResponse(w, resp)
}

// parseParams lee el body según Content-Type: form-urlencoded (default) o JSON.
func parseParams(r *http.Request) (params, error) {
	ct := r.Header.Get("Content-Type")
	mediaType := "application/x-www-form-urlencoded"
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, errors.New("Invalid Content-Type")
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.New("Invalid JSON body")
		}
		out := make(params, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				out[k] = val
			case nil:
				// null == ausente
			default:
				return nil, fmt.Errorf("Parameter %q must be a string", k)
			}
		}
		return out, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("Invalid form data")
		}
		out := make(params, len(r.PostForm))
		for k := range r.PostForm {
			out[k] = r.PostForm.Get(k)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("Unsupported Content-Type %q", mediaType)
	}
}

// statusFor mapea el kind OAuth a HTTP status.
func statusFor(kind error) int {
	switch kind {
	case svc.ErrTokenInvalidClient:
		return http.StatusUnauthorized
	case svc.ErrTokenUnauthorizedClient:
		return http.StatusForbidden
	case svc.ErrTokenServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (c *TokenController) handleServiceError(ctx context.Context, w http.ResponseWriter, grantType string, err error) {
	if ge, ok := svc.AsGrantError(err); ok {
		c.writeGrantError(w, grantType, statusFor(ge.Kind), ge.Kind.Error(), ge.Description)
		return
	}

	// Storage, firma, deadline: server_error con el mensaje crudo para el operador
	log := logger.From(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		log.Error("token request timed out", logger.Err(err))
	} else {
		log.Error("token endpoint error", logger.Err(err))
	}
	c.writeGrantError(w, grantType, http.StatusInternalServerError, "server_error", err.Error())
}

// grantLabel acota la cardinalidad del label: grant_type viene del cliente.
func grantLabel(grantType string) string {
	switch grantType {
	case svc.GrantAuthorizationCode, svc.GrantRefreshToken, svc.GrantClientCredentials:
		return grantType
	case "":
		return "none"
	default:
		return "other"
	}
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

func (c *TokenController) writeGrantError(w http.ResponseWriter, grantType string, status int, errorCode, description string) {
	metrics.GrantErrorsTotal.WithLabelValues(grantLabel(grantType), errorCode).Inc()

	noStore(w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorCode, ErrorDescription: description})
}

func (c *TokenController) writeTokenResponse(w http.ResponseWriter, resp *svc.TokenResponse) {
	noStore(w)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
