package webhook

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Webhook headers sent by the risk service.
const (
	HeaderSignature = "X-Signifyd-Sec-Hmac-Sha256"
	HeaderTopic     = "X-Signifyd-Topic"
)

// EventParams defines parameters for HandleEvent.
type EventParams struct {
	Signature string
	Topic     string
	Body      []byte
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Webhook intake (POST /api/webhooks/signifyd).
	HandleEvent(w http.ResponseWriter, r *http.Request, params EventParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// HandleEvent operation middleware. An empty or unreadable body is not an
// error here: the service treats it as a reachability probe.
func (siw *ServerInterfaceWrapper) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var params EventParams

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	params.Body = body
	params.Signature = r.Header.Get(HeaderSignature)
	params.Topic = r.Header.Get(HeaderTopic)

	siw.Handler.HandleEvent(w, r, params)
}

// Handler creates http.Handler with routing matching spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Post(options.BaseURL+"/webhooks/signifyd", wrapper.HandleEvent)
	})

	return r
}
