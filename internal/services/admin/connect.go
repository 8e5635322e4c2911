package admin

import (
	"time"

	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient/tokenstore"
)

// ServiceName is sent as X-Service-Name on every request.
const ServiceName = "admin"

// ConnectOptions describe where the API lives and where the token is kept.
type ConnectOptions struct {
	Origin    string
	TokenKind tokenstore.Kind
	TokenDir  string
	Timeout   time.Duration
}

// Connect builds the API client, the token store and a Session on top.
func Connect(opts ConnectOptions) (*Session, error) {
	client, err := apiclient.New(apiclient.Options{
		Origin:      opts.Origin,
		ServiceName: ServiceName,
		Timeout:     opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	var storeOpts []tokenstore.Option
	if opts.TokenDir != "" {
		storeOpts = append(storeOpts, tokenstore.Dir(opts.TokenDir))
	}
	kind := opts.TokenKind
	if kind == "" {
		kind = tokenstore.KindLocal
	}
	tokens, err := tokenstore.New(ServiceName, kind, storeOpts...)
	if err != nil {
		return nil, err
	}
	return New(Options{Client: client, Tokens: tokens})
}
