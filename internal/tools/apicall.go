package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pragasv/sola-labs-demo/internal/httpkit"
	"github.com/pragasv/sola-labs-demo/internal/llm"
)

// HTTPCaller sends call_API payloads as a JSON POST body or as GET query
// parameters.
type HTTPCaller struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPCaller creates a caller whose requests time out after timeout.
func NewHTTPCaller(timeout time.Duration, logger *slog.Logger) *HTTPCaller {
	return &HTTPCaller{
		client: httpkit.NewClient(
			httpkit.WithTimeout(timeout),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
		logger: logger,
	}
}

type apiPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

// Call performs the request and returns the "id" field of a JSON object
// response, or nil when there is none.
func (c *HTTPCaller) Call(ctx context.Context, args APIArgs) (any, error) {
	if args.Endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrInvalidArguments)
	}
	payload := apiPayload{Title: args.Title, Body: args.Body, UserID: args.UserID}

	var out any
	var err error
	switch method := normalizeMethod(args.Method); method {
	case http.MethodPost:
		err = httpkit.DoJSON(ctx, c.client, method, args.Endpoint, nil, payload, &out)
	case http.MethodGet:
		u, perr := url.Parse(args.Endpoint)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, perr)
		}
		q := u.Query()
		q.Set("title", payload.Title)
		q.Set("body", payload.Body)
		q.Set("userId", strconv.Itoa(payload.UserID))
		u.RawQuery = q.Encode()
		err = httpkit.DoJSON(ctx, c.client, method, u.String(), nil, nil, &out)
	default:
		return nil, fmt.Errorf("unsupported method %q: use GET or POST", args.Method)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", normalizeMethod(args.Method), args.Endpoint, err)
	}

	c.logger.Log(ctx, llm.LevelTrace, "API response", "endpoint", args.Endpoint, "response", out)
	if obj, ok := out.(map[string]any); ok {
		return obj["id"], nil
	}
	return nil, nil
}
